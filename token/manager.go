// Package token owns the lifecycle of issued access/refresh token pairs:
// issuance, lookup, idempotent revocation and rotation. Rotation is the
// security-critical path; a rotation that widens scope is rejected.
package token

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/credentials"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/scope"
	"github.com/wheats/oauth2-server/users"
)

const insertAttempts = 3

// Manager is the token store of the grant engine.
type Manager struct {
	repo      Repo
	generator *credentials.Generator
	ttl       time.Duration
	nowFunc   func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides the default access token lifetime.
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

// NewManager creates a token manager backed by the given repo.
func NewManager(repo Repo, generator *credentials.Generator, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:      repo,
		generator: generator,
		ttl:       DefaultTTL,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Issue allocates a fresh token record. user may be nil for
// client-credential-only tokens. withRefresh controls whether a refresh token
// is attached; grant types that do not permit refresh pass false.
func (m *Manager) Issue(ctx context.Context, client *clients.Client, user *users.User, grantedScope string, withRefresh bool) (*Token, error) {
	now := m.nowFunc()

	t := &Token{
		ClientID:  client.ID,
		Scope:     scope.Canonical(grantedScope),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if user != nil {
		t.UserID = user.ID
	}

	for attempt := 0; attempt < insertAttempts; attempt++ {
		access, err := m.generator.Generate()
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.Issue] generate access token")
		}
		t.AccessToken = access

		if withRefresh {
			refresh, err := m.generator.Generate()
			if err != nil {
				return nil, errors.Wrap(err, "[Manager.Issue] generate refresh token")
			}
			t.RefreshToken = refresh
		}

		err = m.repo.Insert(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTokenExists) {
			return nil, errors.Wrap(err, "[Manager.Issue] insert token")
		}
	}
	return nil, errors.New("[Manager.Issue] exhausted attempts generating a unique token")
}

// LookupRefresh resolves a refresh token to its record. Unknown, expired and
// rotated-away tokens all collapse to oauth2.ErrInvalidGrant.
func (m *Manager) LookupRefresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, oauth2.ErrInvalidGrant
	}
	t, err := m.repo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oauth2.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "[Manager.LookupRefresh] get by refresh token")
	}
	if t.Revoked || t.IsExpired(m.nowFunc()) {
		return nil, oauth2.ErrInvalidGrant
	}
	return t, nil
}

// LookupAccess resolves an access token to its record without judging
// validity beyond existence; the resource protector applies the expiry and
// revocation rules.
func (m *Manager) LookupAccess(ctx context.Context, accessToken string) (*Token, error) {
	return m.repo.GetByAccessToken(ctx, accessToken)
}

// Rotate redeems a refresh token: a new record is created and the old one is
// revoked in a single atomic store operation, so the old refresh token is
// unusable even if the new token is never claimed.
//
// requestedScope empty means the new token inherits old.Scope verbatim.
// Otherwise the requested scope must be a subset of old.Scope; anything
// broader is rejected with invalid_scope. This check is the single most
// important security property of the engine.
func (m *Manager) Rotate(ctx context.Context, old *Token, requestedScope string) (*Token, error) {
	newScope := old.Scope
	if requestedScope != "" {
		if !scope.IsSubset(requestedScope, old.Scope) {
			return nil, oauth2.ErrInvalidScope
		}
		newScope = scope.Canonical(requestedScope)
	}

	now := m.nowFunc()
	replacement := &Token{
		ClientID:  old.ClientID,
		UserID:    old.UserID,
		Scope:     newScope,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	access, err := m.generator.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Rotate] generate access token")
	}
	refresh, err := m.generator.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Rotate] generate refresh token")
	}
	replacement.AccessToken = access
	replacement.RefreshToken = refresh

	if err := m.repo.Rotate(ctx, old.RefreshToken, replacement); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyRotated) {
			// Lost the race to a concurrent redemption of the same token.
			return nil, oauth2.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "[Manager.Rotate] rotate token")
	}
	return replacement, nil
}

// Revoke marks a token revoked. tokenTypeHint follows RFC 7009: try the
// hinted lookup first, fall back to the other. Revoking an unknown token is
// not an error, and revoking twice has the same observable effect as once.
func (m *Manager) Revoke(ctx context.Context, tokenValue, tokenTypeHint string) error {
	if tokenValue == "" {
		return nil
	}
	if tokenTypeHint == "refresh_token" {
		if err := m.repo.RevokeByRefreshToken(ctx, tokenValue); err != nil {
			return errors.Wrap(err, "[Manager.Revoke] revoke by refresh token")
		}
		return nil
	}
	if err := m.repo.Revoke(ctx, tokenValue); err != nil {
		return errors.Wrap(err, "[Manager.Revoke] revoke by access token")
	}
	// The hint may be wrong or absent; try the refresh index as well.
	if err := m.repo.RevokeByRefreshToken(ctx, tokenValue); err != nil {
		return errors.Wrap(err, "[Manager.Revoke] revoke by refresh token fallback")
	}
	return nil
}

// HasActiveTokenCovering reports whether an unexpired, unrevoked token for
// this user+client already covers the requested scope. Drives the consent
// auto-approval policy.
func (m *Manager) HasActiveTokenCovering(ctx context.Context, userID, clientID, requestedScope string) (bool, error) {
	active, err := m.repo.ListActiveByUserClient(ctx, userID, clientID, m.nowFunc())
	if err != nil {
		return false, errors.Wrap(err, "[Manager.HasActiveTokenCovering] list active tokens")
	}
	for _, t := range active {
		if scope.IsSubset(requestedScope, t.Scope) {
			return true, nil
		}
	}
	return false, nil
}

// DeleteExpired is the best-effort expiry sweep. Correctness never depends on
// it; every read path checks ExpiresAt and Revoked independently.
func (m *Manager) DeleteExpired(ctx context.Context) (int, error) {
	return m.repo.DeleteExpired(ctx, m.nowFunc())
}

// TTL returns the configured access token lifetime in seconds.
func (m *Manager) TTL() int {
	return int(m.ttl / time.Second)
}

// Now returns the manager's current clock reading.
func (m *Manager) Now() time.Time {
	return m.nowFunc()
}
