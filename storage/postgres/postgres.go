// Package postgres persists the OAuth2 entities in PostgreSQL via
// database/sql and lib/pq. The single-use and rotate-once guarantees are
// enforced in SQL: Consume is a conditional UPDATE and Rotate runs the
// revoke+insert pair inside one transaction.
package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/authcode"
	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/token"
	"github.com/wheats/oauth2-server/users"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Store owns the database handle and hands out the per-entity repositories.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection and creates the
// schema when it does not exist yet.
func Open(ctx context.Context, connectionString string) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "[postgres.Open] open")
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "[postgres.Open] ping")
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, errors.Wrap(err, "[postgres.Open] init schema")
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS oauth_clients (
		id             VARCHAR(255) PRIMARY KEY,
		name           VARCHAR(255) NOT NULL DEFAULT '',
		type           VARCHAR(32)  NOT NULL,
		secret_hash    TEXT         NOT NULL DEFAULT '',
		redirect_uris  TEXT[]       NOT NULL DEFAULT '{}',
		grant_types    TEXT[]       NOT NULL DEFAULT '{}',
		response_types TEXT[]       NOT NULL DEFAULT '{}',
		scope          TEXT         NOT NULL DEFAULT '',
		auth_methods   TEXT[]       NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS oauth_users (
		id            VARCHAR(255) PRIMARY KEY,
		username      VARCHAR(255) NOT NULL UNIQUE,
		email         VARCHAR(255) NOT NULL DEFAULT '',
		password_hash TEXT         NOT NULL,
		role          VARCHAR(32)  NOT NULL,
		date_joined   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS oauth_codes (
		code                  VARCHAR(255) PRIMARY KEY,
		client_id             VARCHAR(255) NOT NULL,
		redirect_uri          TEXT         NOT NULL,
		scope                 TEXT         NOT NULL DEFAULT '',
		user_id               VARCHAR(255) NOT NULL,
		code_challenge        TEXT         NOT NULL DEFAULT '',
		code_challenge_method VARCHAR(16)  NOT NULL DEFAULT '',
		expires_at            TIMESTAMPTZ  NOT NULL,
		consumed              BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at            TIMESTAMPTZ  NOT NULL
	);

	CREATE TABLE IF NOT EXISTS oauth_tokens (
		access_token  VARCHAR(255) PRIMARY KEY,
		refresh_token VARCHAR(255),
		client_id     VARCHAR(255) NOT NULL,
		user_id       VARCHAR(255) NOT NULL DEFAULT '',
		scope         TEXT         NOT NULL DEFAULT '',
		expires_at    TIMESTAMPTZ  NOT NULL,
		revoked       BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ  NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_oauth_tokens_refresh
		ON oauth_tokens(refresh_token) WHERE refresh_token <> '';
	CREATE INDEX IF NOT EXISTS idx_oauth_tokens_user_client
		ON oauth_tokens(user_id, client_id);
	CREATE INDEX IF NOT EXISTS idx_oauth_codes_expires
		ON oauth_codes(expires_at);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Clients returns the client repository.
func (s *Store) Clients() clients.Repo { return &ClientRepo{db: s.db} }

// Users returns the user repository.
func (s *Store) Users() users.UserRepo { return &UserRepo{db: s.db} }

// Codes returns the authorization code repository.
func (s *Store) Codes() authcode.Repo { return &AuthCodeRepo{db: s.db} }

// Tokens returns the token repository.
func (s *Store) Tokens() token.Repo { return &TokenRepo{db: s.db} }

// Ping verifies the connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
