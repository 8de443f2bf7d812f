// Package protector validates bearer tokens on behalf of protected
// resources. It answers a single question: is this raw access token good for
// this scope right now, and if so, on whose behalf was it issued.
package protector

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/scope"
	"github.com/wheats/oauth2-server/token"
	"github.com/wheats/oauth2-server/users"
)

// Authorization is the result of a successful bearer token validation. User
// is nil for tokens issued without a resource owner.
type Authorization struct {
	User     *users.User
	UserID   string
	ClientID string
	Scope    string
}

// HasScope reports whether the validated token covers every scope value in
// required.
func (a *Authorization) HasScope(required string) bool {
	return scope.IsSubset(required, a.Scope)
}

// Protector checks bearer tokens against the token store.
type Protector struct {
	tokens  *token.Manager
	users   users.UserRepo
	nowFunc func() time.Time
}

// Option configures a Protector.
type Option func(*Protector)

// WithNowFunc overrides the clock, for testing.
func WithNowFunc(now func() time.Time) Option {
	return func(p *Protector) {
		p.nowFunc = now
	}
}

// New creates a Protector backed by the given token manager and user repo.
func New(tokens *token.Manager, userRepo users.UserRepo, options ...Option) (*Protector, error) {
	if tokens == nil {
		return nil, errors.New("[protector.New] token manager is required")
	}
	if userRepo == nil {
		return nil, errors.New("[protector.New] user repo is required")
	}
	p := &Protector{
		tokens:  tokens,
		users:   userRepo,
		nowFunc: time.Now,
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// ValidateBearer validates a raw access token and checks that it covers
// requiredScope. A missing, unknown, expired or revoked token yields
// invalid_token; a live token lacking the required scope yields
// insufficient_scope. requiredScope may be empty, in which case any live
// token passes.
func (p *Protector) ValidateBearer(ctx context.Context, accessToken, requiredScope string) (*Authorization, error) {
	if accessToken == "" {
		return nil, oauth2.ErrInvalidToken
	}

	t, err := p.tokens.LookupAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, oauth2.ErrInvalidToken
		}
		return nil, errors.Wrap(err, "[Protector.ValidateBearer] lookup access token")
	}
	if t.Revoked || t.IsExpired(p.nowFunc()) {
		return nil, oauth2.ErrInvalidToken
	}

	auth := &Authorization{
		UserID:   t.UserID,
		ClientID: t.ClientID,
		Scope:    t.Scope,
	}
	if !auth.HasScope(requiredScope) {
		return nil, oauth2.ErrInsufficientScope
	}

	if t.UserID != "" {
		user, err := p.users.GetByID(ctx, t.UserID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				// The owner was deleted after issuance; the token no
				// longer represents anyone.
				return nil, oauth2.ErrInvalidToken
			}
			return nil, errors.Wrap(err, "[Protector.ValidateBearer] lookup token user")
		}
		auth.User = user
	}
	return auth, nil
}
