package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/token"
)

// TokenRepo stores issued token pairs. Rotate wraps the revoke of the old
// record and the insert of its replacement in one transaction so concurrent
// redemptions of the same refresh token cannot both succeed.
type TokenRepo struct {
	db *sql.DB
}

var _ token.Repo = (*TokenRepo)(nil)

const tokenColumns = `access_token, refresh_token, client_id, user_id, scope, expires_at, revoked, created_at`

func (r *TokenRepo) Insert(ctx context.Context, t *token.Token) error {
	return insertToken(ctx, r.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertToken(ctx context.Context, db execer, t *token.Token) error {
	query := `
		INSERT INTO oauth_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.ExecContext(ctx, query,
		t.AccessToken,
		t.RefreshToken,
		t.ClientID,
		t.UserID,
		t.Scope,
		t.ExpiresAt,
		t.Revoked,
		t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return token.ErrTokenExists
		}
		return errors.Wrap(err, "[postgres.insertToken] exec")
	}
	return nil
}

func (r *TokenRepo) GetByAccessToken(ctx context.Context, accessToken string) (*token.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM oauth_tokens WHERE access_token = $1`
	return r.getOne(ctx, query, accessToken, "[TokenRepo.GetByAccessToken]")
}

func (r *TokenRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*token.Token, error) {
	if refreshToken == "" {
		return nil, token.ErrNotFound
	}
	query := `SELECT ` + tokenColumns + ` FROM oauth_tokens WHERE refresh_token = $1`
	return r.getOne(ctx, query, refreshToken, "[TokenRepo.GetByRefreshToken]")
}

func (r *TokenRepo) getOne(ctx context.Context, query, arg, caller string) (*token.Token, error) {
	var t token.Token
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&t.AccessToken,
		&t.RefreshToken,
		&t.ClientID,
		&t.UserID,
		&t.Scope,
		&t.ExpiresAt,
		&t.Revoked,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, caller+" query")
	}
	return &t, nil
}

func (r *TokenRepo) Revoke(ctx context.Context, accessToken string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE oauth_tokens SET revoked = TRUE WHERE access_token = $1`, accessToken)
	return errors.Wrap(err, "[TokenRepo.Revoke] exec")
}

func (r *TokenRepo) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE oauth_tokens SET revoked = TRUE WHERE refresh_token = $1`, refreshToken)
	return errors.Wrap(err, "[TokenRepo.RevokeByRefreshToken] exec")
}

func (r *TokenRepo) Rotate(ctx context.Context, oldRefreshToken string, replacement *token.Token) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Rotate] begin tx")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE oauth_tokens SET revoked = TRUE WHERE refresh_token = $1 AND revoked = FALSE`,
		oldRefreshToken)
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Rotate] revoke old")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Rotate] rows affected")
	}
	if affected == 0 {
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM oauth_tokens WHERE refresh_token = $1)`,
			oldRefreshToken).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "[TokenRepo.Rotate] exists query")
		}
		if exists {
			return token.ErrAlreadyRotated
		}
		return token.ErrNotFound
	}

	if err := insertToken(ctx, tx, replacement); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "[TokenRepo.Rotate] commit")
}

func (r *TokenRepo) ListActiveByUserClient(ctx context.Context, userID, clientID string, now time.Time) ([]*token.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM oauth_tokens
		WHERE user_id = $1 AND client_id = $2 AND revoked = FALSE AND expires_at > $3
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, clientID, now)
	if err != nil {
		return nil, errors.Wrap(err, "[TokenRepo.ListActiveByUserClient] query")
	}
	defer rows.Close()

	var result []*token.Token
	for rows.Next() {
		var t token.Token
		err := rows.Scan(
			&t.AccessToken,
			&t.RefreshToken,
			&t.ClientID,
			&t.UserID,
			&t.Scope,
			&t.ExpiresAt,
			&t.Revoked,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "[TokenRepo.ListActiveByUserClient] scan")
		}
		result = append(result, &t)
	}
	return result, errors.Wrap(rows.Err(), "[TokenRepo.ListActiveByUserClient] rows")
}

func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE expires_at <= $1 OR revoked = TRUE`, now)
	if err != nil {
		return 0, errors.Wrap(err, "[TokenRepo.DeleteExpired] exec")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "[TokenRepo.DeleteExpired] rows affected")
	}
	return int(affected), nil
}
