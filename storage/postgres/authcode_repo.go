package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/authcode"
	"github.com/wheats/oauth2-server/oauth2"
)

// AuthCodeRepo stores authorization codes. Consume relies on a conditional
// UPDATE so only one of any number of concurrent redemptions can win.
type AuthCodeRepo struct {
	db *sql.DB
}

var _ authcode.Repo = (*AuthCodeRepo)(nil)

const codeColumns = `code, client_id, redirect_uri, scope, user_id, code_challenge, code_challenge_method, expires_at, consumed, created_at`

func (r *AuthCodeRepo) Insert(ctx context.Context, code *authcode.AuthorizationCode) error {
	query := `
		INSERT INTO oauth_codes (` + codeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		code.Code,
		code.ClientID,
		code.RedirectURI,
		code.Scope,
		code.UserID,
		code.CodeChallenge,
		string(code.CodeChallengeMethod),
		code.ExpiresAt,
		code.Consumed,
		code.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcode.ErrCodeExists
		}
		return errors.Wrap(err, "[AuthCodeRepo.Insert] exec")
	}
	return nil
}

func (r *AuthCodeRepo) Get(ctx context.Context, code string) (*authcode.AuthorizationCode, error) {
	query := `SELECT ` + codeColumns + ` FROM oauth_codes WHERE code = $1`

	var (
		c      authcode.AuthorizationCode
		method string
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&c.Code,
		&c.ClientID,
		&c.RedirectURI,
		&c.Scope,
		&c.UserID,
		&c.CodeChallenge,
		&method,
		&c.ExpiresAt,
		&c.Consumed,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcode.ErrNotFound
		}
		return nil, errors.Wrap(err, "[AuthCodeRepo.Get] query")
	}
	c.CodeChallengeMethod = oauth2.CodeMethodType(method)
	return &c, nil
}

func (r *AuthCodeRepo) Consume(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE oauth_codes SET consumed = TRUE WHERE code = $1 AND consumed = FALSE`, code)
	if err != nil {
		return errors.Wrap(err, "[AuthCodeRepo.Consume] exec")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[AuthCodeRepo.Consume] rows affected")
	}
	if affected == 1 {
		return nil
	}

	// Nothing flipped: the code is either gone or already spent.
	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM oauth_codes WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "[AuthCodeRepo.Consume] exists query")
	}
	if exists {
		return authcode.ErrAlreadyConsumed
	}
	return authcode.ErrNotFound
}

func (r *AuthCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "[AuthCodeRepo.DeleteExpired] exec")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[AuthCodeRepo.DeleteExpired] rows affected")
	}
	return int(affected), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
