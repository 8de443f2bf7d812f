package authcode

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("authorization code not found")
	ErrCodeExists      = errors.New("authorization code already exists")
	ErrAlreadyConsumed = errors.New("authorization code already consumed")
)

// Repo persists authorization codes.
//
// Consume is the concurrency-critical operation: it must atomically flip the
// consumed flag from false to true as a single conditional update, returning
// ErrAlreadyConsumed when the flag was already set. Two concurrent redemptions
// of the same code must never both succeed.
type Repo interface {
	Insert(ctx context.Context, code *AuthorizationCode) error
	Get(ctx context.Context, code string) (*AuthorizationCode, error)
	Consume(ctx context.Context, code string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
