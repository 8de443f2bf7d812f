package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/oauth2"
)

// ClientRepo stores registered OAuth2 clients.
type ClientRepo struct {
	db *sql.DB
}

var _ clients.Repo = (*ClientRepo)(nil)

const clientColumns = `id, name, type, secret_hash, redirect_uris, grant_types, response_types, scope, auth_methods`

func (r *ClientRepo) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM oauth_clients WHERE id = $1`
	c, err := scanClient(r.db.QueryRowContext(ctx, query, clientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clients.ErrNotFound
		}
		return nil, errors.Wrap(err, "[ClientRepo.Get] query")
	}
	return c, nil
}

func (r *ClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	query := `
		INSERT INTO oauth_clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			name           = EXCLUDED.name,
			type           = EXCLUDED.type,
			secret_hash    = EXCLUDED.secret_hash,
			redirect_uris  = EXCLUDED.redirect_uris,
			grant_types    = EXCLUDED.grant_types,
			response_types = EXCLUDED.response_types,
			scope          = EXCLUDED.scope,
			auth_methods   = EXCLUDED.auth_methods
	`
	_, err := r.db.ExecContext(ctx, query,
		client.ID,
		client.Name,
		string(client.Type),
		client.SecretHash,
		pq.Array(client.RedirectURIs),
		pq.Array(grantTypeStrings(client.GrantTypes)),
		pq.Array(responseTypeStrings(client.ResponseTypes)),
		client.Scope,
		pq.Array(authMethodStrings(client.AuthMethods)),
	)
	return errors.Wrap(err, "[ClientRepo.Upsert] exec")
}

func (r *ClientRepo) Delete(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_clients WHERE id = $1`, clientID)
	return errors.Wrap(err, "[ClientRepo.Delete] exec")
}

func (r *ClientRepo) List(ctx context.Context, offset, limit int) ([]*clients.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM oauth_clients ORDER BY id OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[ClientRepo.List] query")
	}
	defer rows.Close()

	var result []*clients.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, errors.Wrap(err, "[ClientRepo.List] scan")
		}
		result = append(result, c)
	}
	return result, errors.Wrap(rows.Err(), "[ClientRepo.List] rows")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*clients.Client, error) {
	var (
		c             clients.Client
		clientType    string
		redirectURIs  pq.StringArray
		grantTypes    pq.StringArray
		responseTypes pq.StringArray
		authMethods   pq.StringArray
	)
	err := row.Scan(
		&c.ID,
		&c.Name,
		&clientType,
		&c.SecretHash,
		&redirectURIs,
		&grantTypes,
		&responseTypes,
		&c.Scope,
		&authMethods,
	)
	if err != nil {
		return nil, err
	}
	c.Type = clients.ClientType(clientType)
	c.RedirectURIs = redirectURIs
	c.GrantTypes = toGrantTypes(grantTypes)
	c.ResponseTypes = toResponseTypes(responseTypes)
	c.AuthMethods = toAuthMethods(authMethods)
	return &c, nil
}

func grantTypeStrings(in []oauth2.GrantType) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func responseTypeStrings(in []oauth2.ResponseType) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func authMethodStrings(in []oauth2.TokenEndpointAuthMethod) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func toGrantTypes(in []string) []oauth2.GrantType {
	out := make([]oauth2.GrantType, len(in))
	for i, v := range in {
		out[i] = oauth2.GrantType(v)
	}
	return out
}

func toResponseTypes(in []string) []oauth2.ResponseType {
	out := make([]oauth2.ResponseType, len(in))
	for i, v := range in {
		out[i] = oauth2.ResponseType(v)
	}
	return out
}

func toAuthMethods(in []string) []oauth2.TokenEndpointAuthMethod {
	out := make([]oauth2.TokenEndpointAuthMethod, len(in))
	for i, v := range in {
		out[i] = oauth2.TokenEndpointAuthMethod(v)
	}
	return out
}
