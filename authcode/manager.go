// Package authcode issues and redeems the short-lived, single-use codes of
// the authorization code flow, including PKCE verification (RFC 7636).
package authcode

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/credentials"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/users"
)

// Collisions on insert are expected-rare; regenerate rather than fail.
const insertAttempts = 3

// PKCE holds the optional proof-key challenge supplied at authorization time.
type PKCE struct {
	Challenge string
	Method    oauth2.CodeMethodType
}

// Manager is the authorization code store of the grant engine.
type Manager struct {
	repo      Repo
	generator *credentials.Generator
	ttl       time.Duration
	nowFunc   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the default code lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithNowFunc sets the clock source (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates an authorization code manager backed by the given repo.
func NewManager(repo Repo, generator *credentials.Generator, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:      repo,
		generator: generator,
		ttl:       CodeTTL,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Issue creates a fresh authorization code for an approved authorization
// request. The stored scope is the intersection of the client's allowed
// scopes and the requested scope; PKCE fields are stored verbatim if present.
func (m *Manager) Issue(ctx context.Context, client *clients.Client, user *users.User, redirectURI, requestedScope string, pkce *PKCE) (*AuthorizationCode, error) {
	now := m.nowFunc()

	code := &AuthorizationCode{
		ClientID:    client.ID,
		RedirectURI: redirectURI,
		Scope:       client.AllowedScope(requestedScope),
		UserID:      user.ID,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
	}
	if pkce != nil {
		code.CodeChallenge = pkce.Challenge
		code.CodeChallengeMethod = pkce.Method
	}

	for attempt := 0; attempt < insertAttempts; attempt++ {
		value, err := m.generator.Generate()
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.Issue] generate code")
		}
		code.Code = value

		err = m.repo.Insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrCodeExists) {
			return nil, errors.Wrap(err, "[Manager.Issue] insert code")
		}
	}
	return nil, errors.New("[Manager.Issue] exhausted attempts generating a unique code")
}

// Redeem validates and consumes an authorization code. All failure modes
// (unknown code, already consumed, expired, client mismatch, redirect URI
// mismatch, PKCE failure) surface as oauth2.ErrInvalidGrant so the caller
// cannot distinguish them. The consumed flag is flipped atomically; the
// second of two concurrent redemptions fails.
func (m *Manager) Redeem(ctx context.Context, code string, client *clients.Client, redirectURI, verifier string) (*AuthorizationCode, error) {
	stored, err := m.repo.Get(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oauth2.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "[Manager.Redeem] get code")
	}

	if stored.Consumed {
		return nil, oauth2.ErrInvalidGrant
	}
	if stored.IsExpired(m.nowFunc()) {
		// Same outward error as "already used": terminal failure states are
		// not distinguished to the caller.
		return nil, oauth2.ErrInvalidGrant
	}
	if stored.ClientID != client.ID {
		return nil, oauth2.ErrInvalidGrant
	}
	if stored.RedirectURI != redirectURI {
		return nil, oauth2.ErrInvalidGrant
	}
	if !stored.VerifyChallenge(verifier) {
		return nil, oauth2.ErrInvalidGrant
	}

	if err := m.repo.Consume(ctx, code); err != nil {
		if errors.Is(err, ErrAlreadyConsumed) || errors.Is(err, ErrNotFound) {
			return nil, oauth2.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "[Manager.Redeem] consume code")
	}

	stored.Consumed = true
	return stored, nil
}

// DeleteExpired is the best-effort expiry sweep. Correctness never depends on
// it running; Redeem checks expiry on every read.
func (m *Manager) DeleteExpired(ctx context.Context) (int, error) {
	return m.repo.DeleteExpired(ctx, m.nowFunc())
}
