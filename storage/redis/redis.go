// Package redis keeps authorization codes and tokens in Redis. Values are
// JSON blobs with a server-side TTL, so expired entries vanish without a
// sweeper. The single-use and rotate-once guarantees run as Lua scripts;
// Redis executes a script atomically, so concurrent redemptions of the same
// code or refresh token resolve to exactly one winner.
package redis

import (
	"context"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key this store writes.
const DefaultKeyPrefix = "oauth:"

// Config holds the connection settings.
type Config struct {
	// URL is a redis:// connection URL (required).
	URL string

	// KeyPrefix overrides DefaultKeyPrefix.
	KeyPrefix string
}

// Store wraps a Redis client and hands out the per-entity repositories.
type Store struct {
	client *goredis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("[redis.Open] URL is required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "[redis.Open] parse URL")
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "[redis.Open] ping")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Codes returns the authorization code repository.
func (s *Store) Codes() *AuthCodeRepo {
	return &AuthCodeRepo{client: s.client, prefix: s.prefix}
}

// Tokens returns the token repository.
func (s *Store) Tokens() *TokenRepo {
	return &TokenRepo{client: s.client, prefix: s.prefix}
}

// Ping verifies the connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
