package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/users"
)

type registerUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterUserHandler creates an end-user account (POST /auth/register).
func (s *Server) RegisterUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
			return
		}

		role := users.RoleType(req.Role)
		switch role {
		case users.RoleCustomer, users.RoleStore:
		case "":
			role = users.RoleCustomer
		default:
			// Admin accounts are never self-service.
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
			return
		}

		if _, err := s.repos.Users.GetByUsername(r.Context(), req.Username); err == nil {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "username already taken"})
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			log.Err(err).Msg("hash password")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}

		user := &users.User{
			ID:           uuid.NewString(),
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         role,
			DateJoined:   time.Now().UTC(),
		}
		if err := s.repos.Users.Upsert(r.Context(), user); err != nil {
			log.Err(err).Msg("store user")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

type registerClientRequest struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	RedirectURIs []string `json:"redirect_uris"`
	GrantTypes   []string `json:"grant_types"`
	Scope        string   `json:"scope"`
}

type registerClientResponse struct {
	*clients.Client
	ClientSecret string `json:"client_secret,omitempty"`
}

// RegisterClientHandler registers an OAuth2 client (POST
// /admin/register_client, scope "admin"). The generated secret is returned
// exactly once.
func (s *Server) RegisterClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerClientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.Name == "" || len(req.RedirectURIs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and redirect_uris are required"})
			return
		}

		clientType := clients.ClientType(req.Type)
		if clientType == "" {
			clientType = clients.ClientTypeConfidential
		}
		if clientType != clients.ClientTypeConfidential && clientType != clients.ClientTypePublic {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid client type"})
			return
		}

		grantTypes := make([]oauth2.GrantType, 0, len(req.GrantTypes))
		for _, gt := range req.GrantTypes {
			grantTypes = append(grantTypes, oauth2.GrantType(gt))
		}
		if len(grantTypes) == 0 {
			grantTypes = []oauth2.GrantType{
				oauth2.AuthorizationCodeGrant,
				oauth2.PasswordGrant,
				oauth2.RefreshTokenGrant,
			}
		}

		client := &clients.Client{
			ID:            uuid.NewString(),
			Name:          req.Name,
			Type:          clientType,
			RedirectURIs:  req.RedirectURIs,
			GrantTypes:    grantTypes,
			ResponseTypes: []oauth2.ResponseType{oauth2.CodeResponseType},
			Scope:         req.Scope,
		}

		var secret string
		if clientType == clients.ClientTypePublic {
			client.AuthMethods = []oauth2.TokenEndpointAuthMethod{oauth2.AuthMethodNone}
		} else {
			generated, err := s.newClientSecret()
			if err != nil {
				log.Err(err).Msg("generate client secret")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			secret = generated
			hash, err := clients.HashSecret(secret)
			if err != nil {
				log.Err(err).Msg("hash client secret")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			client.SecretHash = hash
			client.AuthMethods = []oauth2.TokenEndpointAuthMethod{
				oauth2.AuthMethodClientSecretBasic,
				oauth2.AuthMethodClientSecretPost,
			}
		}

		if err := s.repos.Clients.Upsert(r.Context(), client); err != nil {
			log.Err(err).Msg("store client")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		writeJSON(w, http.StatusCreated, registerClientResponse{Client: client, ClientSecret: secret})
	}
}

func (s *Server) newClientSecret() (string, error) {
	return s.generator.Generate()
}
