package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/users"
)

type loginPageData struct {
	AppName  string
	Next     string
	Error    string
	Username string // preserved on a failed attempt
}

type consentPageData struct {
	AppName    string
	ClientName string
	Scopes     string
	Request    oauth2.AuthorizationRequest
}

var (
	loginTemplate   = template.Must(template.New("login").Parse(loginPageHTML))
	consentTemplate = template.Must(template.New("consent").Parse(consentPageHTML))
)

// LoginPageHandler displays the login form (GET /login).
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderLoginPage(w, loginPageData{
			Next:  r.URL.Query().Get("next"),
			Error: r.URL.Query().Get("error"),
		})
	}
}

// LoginSubmissionHandler checks the submitted credentials and starts a
// session (POST /auth/login).
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "failed to parse form", http.StatusBadRequest)
			return
		}

		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		next := safeNextURL(r.PostFormValue("next"))

		user, err := s.repos.Users.GetByUsername(r.Context(), username)
		if err != nil || !users.CheckPasswordHash(password, user.PasswordHash) {
			s.renderLoginPage(w, loginPageData{
				Next:     next,
				Error:    "Invalid username or password",
				Username: username,
			})
			return
		}

		if err := s.sessions.setCookie(w, user.ID); err != nil {
			log.Err(err).Msg("issue session cookie")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, next, http.StatusFound)
	}
}

// LogoutHandler clears the session (GET /auth/logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.clearCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

func (s *Server) renderLoginPage(w http.ResponseWriter, data loginPageData) {
	data.AppName = s.config.GetAppName()
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := loginTemplate.Execute(w, data); err != nil {
		log.Err(err).Msg("render login page")
	}
}

func (s *Server) renderConsentPage(w http.ResponseWriter, data consentPageData) {
	data.AppName = s.config.GetAppName()
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := consentTemplate.Execute(w, data); err != nil {
		log.Err(err).Msg("render consent page")
	}
}

// safeNextURL only allows relative in-app destinations, blocking open
// redirects through the login form.
func safeNextURL(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}
