package token

import "time"

// DefaultTTL is the access token lifetime when the caller does not specify
// one.
const DefaultTTL = 3600 * time.Second

// Token is an issued access/refresh pair, modeled as a single record. The
// strings sent to clients are opaque; everything else is server-side
// metadata. Scope is always a subset of the scope of the authorization event
// that created the record.
type Token struct {
	AccessToken  string
	RefreshToken string // empty when the grant type does not permit refresh
	ClientID     string
	UserID       string // empty for client-credential-only tokens
	Scope        string
	ExpiresAt    time.Time
	Revoked      bool
	CreatedAt    time.Time
}

// IsExpired is deterministic from ExpiresAt and the supplied clock. An
// expired token is never valid regardless of other fields.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime in whole seconds, never negative.
func (t *Token) ExpiresIn(now time.Time) int {
	if t.IsExpired(now) {
		return 0
	}
	return int(t.ExpiresAt.Sub(now) / time.Second)
}
