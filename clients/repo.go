package clients

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("client not found")

// Repo manages registered OAuth2 clients. Implementations must treat a
// missing client as ErrNotFound so callers can map it onto the RFC error
// taxonomy without leaking store detail.
type Repo interface {
	Get(ctx context.Context, clientID string) (*Client, error)
	Upsert(ctx context.Context, client *Client) error
	Delete(ctx context.Context, clientID string) error
	List(ctx context.Context, offset, limit int) ([]*Client, error)
}
