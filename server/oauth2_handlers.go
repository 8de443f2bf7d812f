package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/wheats/oauth2-server/grant"
	"github.com/wheats/oauth2-server/oauth2"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// AuthorizeHandler starts the authorization code flow (GET /oauth/authorize).
// The request is validated up front; the user is then routed to the login
// page, the consent page, or straight back to the client depending on
// session state and consent policy.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := authorizationRequestFromValues(r.URL.Query())

		consent, err := s.executor.BeginAuthorization(r.Context(), req)
		if err != nil {
			s.authorizeError(w, r, req, err)
			return
		}

		userID := s.sessions.currentUserID(r)
		if userID == "" || r.URL.Query().Get("prompt") == "login" {
			// prompt=login forces a fresh sign-in; the continuation URL has
			// it stripped so one login suffices.
			s.sessions.clearCookie(w)
			s.renderLoginPage(w, loginPageData{Next: authorizeURLWithoutPrompt(r)})
			return
		}

		user, err := s.repos.Users.GetByID(r.Context(), userID)
		if err != nil {
			// Stale session; make the user log in again.
			s.sessions.clearCookie(w)
			s.renderLoginPage(w, loginPageData{Next: authorizeURLWithoutPrompt(r)})
			return
		}

		auto, err := s.executor.ShouldAutoApprove(r.Context(), consent, user)
		if err != nil {
			log.Err(err).Msg("consent auto-approval check")
		}
		if auto {
			redirect, err := s.executor.CompleteAuthorization(r.Context(), consent, user)
			if err != nil {
				http.Error(w, "authorization failed", http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, redirectURL(redirect), http.StatusFound)
			return
		}

		s.renderConsentPage(w, consentPageData{
			ClientName: consent.Client.Name,
			Scopes:     consent.GrantedScope,
			Request:    req,
		})
	}
}

// ConsentSubmissionHandler finishes the flow after the consent page
// (POST /auth/consent). The original authorization parameters travel through
// hidden form fields and are revalidated from scratch.
func (s *Server) ConsentSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "failed to parse form", http.StatusBadRequest)
			return
		}

		req := authorizationRequestFromValues(r.PostForm)
		consent, err := s.executor.BeginAuthorization(r.Context(), req)
		if err != nil {
			s.authorizeError(w, r, req, err)
			return
		}

		userID := s.sessions.currentUserID(r)
		if userID == "" {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}
		user, err := s.repos.Users.GetByID(r.Context(), userID)
		if err != nil {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}

		if r.PostFormValue("action") != "approve" {
			user = nil // denial
		}
		redirect, err := s.executor.CompleteAuthorization(r.Context(), consent, user)
		if err != nil {
			http.Error(w, "authorization failed", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, redirectURL(redirect), http.StatusFound)
	}
}

// TokenHandler exchanges a grant for tokens (POST /oauth/token).
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "failed to parse form data"))
			return
		}

		req := oauth2.TokenRequest{
			GrantType:    oauth2.GrantType(r.PostFormValue("grant_type")),
			Code:         r.PostFormValue("code"),
			RedirectURI:  r.PostFormValue("redirect_uri"),
			CodeVerifier: r.PostFormValue("code_verifier"),
			Username:     r.PostFormValue("username"),
			Password:     r.PostFormValue("password"),
			RefreshToken: r.PostFormValue("refresh_token"),
			Scope:        r.PostFormValue("scope"),
		}
		req.ClientID, req.ClientSecret, req.AuthMethod = clientCredentials(r)

		resp, err := s.executor.IssueToken(r.Context(), req)
		if err != nil {
			if oauth2.AsError(err).Code == oauth2.ErrCodeInvalidClient && req.AuthMethod == oauth2.AuthMethodClientSecretBasic {
				w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
			}
			writeOAuthError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// RevokeHandler revokes a token (POST /oauth/revoke). Per RFC 7009 the
// endpoint answers 200 even when the token is unknown.
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "failed to parse form data"))
			return
		}

		req := grant.RevocationRequest{
			Token:         r.PostFormValue("token"),
			TokenTypeHint: r.PostFormValue("token_type_hint"),
		}
		req.ClientID, req.ClientSecret, req.AuthMethod = clientCredentials(r)

		if err := s.executor.RevokeToken(r.Context(), req); err != nil {
			writeOAuthError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// authorizeError decides between showing the error to the user and bouncing
// it back to the client. Problems with the client identity or the redirect
// URI must never redirect; everything else goes back with error and state.
func (s *Server) authorizeError(w http.ResponseWriter, r *http.Request, req oauth2.AuthorizationRequest, err error) {
	oe := oauth2.AsError(err)
	switch oe.Code {
	case oauth2.ErrCodeInvalidClient, oauth2.ErrCodeInvalidRequest, oauth2.ErrCodeServerError:
		http.Error(w, oe.Description, oe.StatusCode())
		return
	}

	params := url.Values{"error": {string(oe.Code)}}
	if oe.Description != "" {
		params.Set("error_description", oe.Description)
	}
	if req.State != "" {
		params.Set("state", req.State)
	}
	http.Redirect(w, r, req.RedirectURI+"?"+params.Encode(), http.StatusFound)
}

func authorizationRequestFromValues(values url.Values) oauth2.AuthorizationRequest {
	return oauth2.AuthorizationRequest{
		ResponseType:        oauth2.ResponseType(values.Get("response_type")),
		ClientID:            values.Get("client_id"),
		RedirectURI:         values.Get("redirect_uri"),
		Scope:               values.Get("scope"),
		State:               values.Get("state"),
		CodeChallenge:       values.Get("code_challenge"),
		CodeChallengeMethod: oauth2.CodeMethodType(values.Get("code_challenge_method")),
	}
}

// clientCredentials pulls the client identity out of HTTP Basic auth or the
// form body, reporting which authentication method the client chose.
func clientCredentials(r *http.Request) (clientID, clientSecret string, method oauth2.TokenEndpointAuthMethod) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret, oauth2.AuthMethodClientSecretBasic
	}
	clientID = r.PostFormValue("client_id")
	clientSecret = r.PostFormValue("client_secret")
	if clientSecret == "" {
		return clientID, "", oauth2.AuthMethodNone
	}
	return clientID, clientSecret, oauth2.AuthMethodClientSecretPost
}

func redirectURL(redirect *oauth2.RedirectDescriptor) string {
	params := url.Values{}
	for k, v := range redirect.Params {
		params.Set(k, v)
	}
	return redirect.URI + "?" + params.Encode()
}

// authorizeURLWithoutPrompt rebuilds the current authorize URL for use as a
// post-login destination, dropping prompt so login is not forced twice.
func authorizeURLWithoutPrompt(r *http.Request) string {
	query := r.URL.Query()
	query.Del("prompt")
	return r.URL.Path + "?" + query.Encode()
}

// writeOAuthError writes an RFC 6749 error response body with the status
// code the error code maps to.
func writeOAuthError(w http.ResponseWriter, err error) {
	oe := oauth2.AsError(err)
	body := map[string]string{"error": string(oe.Code)}
	if oe.Description != "" {
		body["error_description"] = oe.Description
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(oe.StatusCode())
	_ = json.NewEncoder(w).Encode(body)
}
