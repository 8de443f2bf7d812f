package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/users"
)

// UserRepo stores end-user records.
type UserRepo struct {
	db *sql.DB
}

var _ users.UserRepo = (*UserRepo)(nil)

const userColumns = `id, username, email, password_hash, role, date_joined`

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM oauth_users WHERE id = $1`
	return r.getOne(ctx, query, id, "[UserRepo.GetByID]")
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM oauth_users WHERE username = $1`
	return r.getOne(ctx, query, username, "[UserRepo.GetByUsername]")
}

func (r *UserRepo) getOne(ctx context.Context, query, arg, caller string) (*users.User, error) {
	var (
		u    users.User
		role string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.DateJoined,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, caller+" query")
	}
	u.Role = users.RoleType(role)
	return &u, nil
}

func (r *UserRepo) Upsert(ctx context.Context, user *users.User) error {
	query := `
		INSERT INTO oauth_users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			username      = EXCLUDED.username,
			email         = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role          = EXCLUDED.role
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.DateJoined,
	)
	return errors.Wrap(err, "[UserRepo.Upsert] exec")
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_users WHERE id = $1`, id)
	return errors.Wrap(err, "[UserRepo.Delete] exec")
}
