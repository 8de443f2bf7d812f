package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/protector"
	"github.com/wheats/oauth2-server/users"
)

type contextKey string

const authorizationContextKey contextKey = "authorization"

// RequireScope validates the bearer token and checks it covers every listed
// scope. The validated authorization is stored on the request context for
// the handler.
func (s *Server) RequireScope(scopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	required := strings.Join(scopes, " ")
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth, err := s.protector.ValidateBearer(r.Context(), bearerToken(r), required)
			if err != nil {
				writeBearerError(w, err, required)
				return
			}
			ctx := context.WithValue(r.Context(), authorizationContextKey, auth)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole restricts an already-authorized endpoint to users holding one
// of the given roles. Must run after RequireScope.
func (s *Server) RequireRole(roles ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			auth := authorizationFromContext(r.Context())
			if auth == nil || auth.User == nil {
				writeBearerError(w, oauth2.ErrInvalidToken, "")
				return
			}
			for _, role := range roles {
				if auth.User.Role == role {
					next(w, r)
					return
				}
			}
			writeBearerError(w, oauth2.ErrInsufficientScope, "")
		}
	}
}

func authorizationFromContext(ctx context.Context) *protector.Authorization {
	auth, _ := ctx.Value(authorizationContextKey).(*protector.Authorization)
	return auth
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

// writeBearerError answers a failed bearer validation with the RFC 6750
// WWW-Authenticate challenge.
func writeBearerError(w http.ResponseWriter, err error, requiredScope string) {
	oe := oauth2.AsError(err)
	challenge := fmt.Sprintf(`Bearer error=%q`, string(oe.Code))
	if oe.Code == oauth2.ErrCodeInsufficientScope && requiredScope != "" {
		challenge += fmt.Sprintf(`, scope=%q`, requiredScope)
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeOAuthError(w, err)
}
