package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// UserRepo manages end-user records. A missing user is ErrNotFound.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
}
