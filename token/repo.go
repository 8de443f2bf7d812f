package token

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("token not found")
	ErrTokenExists    = errors.New("token already exists")
	ErrAlreadyRotated = errors.New("token already rotated")
)

// Repo persists issued token records.
//
// Rotate is the concurrency-critical operation: revoking the old record and
// inserting its replacement must happen as one atomic step (a transaction or
// an equivalent conditional update), so that two concurrent redemptions of
// the same refresh token can never both succeed. A record that is already
// revoked surfaces as ErrAlreadyRotated.
type Repo interface {
	Insert(ctx context.Context, t *Token) error
	GetByAccessToken(ctx context.Context, accessToken string) (*Token, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (*Token, error)

	// Revoke marks the record revoked. Idempotent; revoking an unknown or
	// already-revoked token is not an error.
	Revoke(ctx context.Context, accessToken string) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error

	// Rotate atomically revokes the record holding oldRefreshToken and
	// inserts replacement.
	Rotate(ctx context.Context, oldRefreshToken string, replacement *Token) error

	// ListActiveByUserClient returns unrevoked, unexpired records for a
	// user+client pair (consent auto-approval policy).
	ListActiveByUserClient(ctx context.Context, userID, clientID string, now time.Time) ([]*Token, error)

	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
