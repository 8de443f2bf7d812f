package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wheats/oauth2-server/token"
)

// TokenRepo stores token records under token:<access> with the refresh token
// indexed at refresh:<value> pointing at the access token. Both keys share
// the record's TTL.
type TokenRepo struct {
	client *goredis.Client
	prefix string
}

var _ token.Repo = (*TokenRepo)(nil)

// rotateScript revokes the record behind a refresh token and installs its
// replacement in one atomic step.
//
// KEYS[1] = refresh index of the old token
// KEYS[2] = record key of the old token
// KEYS[3] = record key of the replacement
// KEYS[4] = refresh index of the replacement
// ARGV[1] = replacement record JSON
// ARGV[2] = replacement TTL in seconds
// ARGV[3] = replacement access token (refresh index value)
var rotateScript = goredis.NewScript(`
local access = redis.call('GET', KEYS[1])
if not access then
    return 'NOT_FOUND'
end
local data = redis.call('GET', KEYS[2])
if not data then
    redis.call('DEL', KEYS[1])
    return 'NOT_FOUND'
end
local tok = cjson.decode(data)
if tok.revoked then
    return 'ALREADY_ROTATED'
end
tok.revoked = true
redis.call('SET', KEYS[2], cjson.encode(tok), 'KEEPTTL')
redis.call('DEL', KEYS[1])
redis.call('SET', KEYS[3], ARGV[1], 'EX', ARGV[2])
redis.call('SET', KEYS[4], ARGV[3], 'EX', ARGV[2])
return 'OK'
`)

// revokeScript marks a record revoked while keeping its TTL.
var revokeScript = goredis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end
local tok = cjson.decode(data)
tok.revoked = true
redis.call('SET', KEYS[1], cjson.encode(tok), 'KEEPTTL')
return 'OK'
`)

type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id"`
	UserID       string `json:"user_id,omitempty"`
	Scope        string `json:"scope"`
	ExpiresAt    int64  `json:"expires_at"`
	Revoked      bool   `json:"revoked"`
	CreatedAt    int64  `json:"created_at"`
}

func (r *TokenRepo) tokenKey(accessToken string) string {
	return r.prefix + "token:" + accessToken
}

func (r *TokenRepo) refreshKey(refreshToken string) string {
	return r.prefix + "refresh:" + refreshToken
}

func (r *TokenRepo) ucKey(userID, clientID string) string {
	return r.prefix + "uc:" + userID + ":" + clientID
}

func marshalToken(t *token.Token) ([]byte, error) {
	return json.Marshal(&tokenJSON{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ClientID:     t.ClientID,
		UserID:       t.UserID,
		Scope:        t.Scope,
		ExpiresAt:    t.ExpiresAt.Unix(),
		Revoked:      t.Revoked,
		CreatedAt:    t.CreatedAt.Unix(),
	})
}

func unmarshalToken(data []byte) (*token.Token, error) {
	var stored tokenJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &token.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ClientID:     stored.ClientID,
		UserID:       stored.UserID,
		Scope:        stored.Scope,
		ExpiresAt:    time.Unix(stored.ExpiresAt, 0).UTC(),
		Revoked:      stored.Revoked,
		CreatedAt:    time.Unix(stored.CreatedAt, 0).UTC(),
	}, nil
}

func tokenTTL(t *token.Token) time.Duration {
	ttl := time.Until(t.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (r *TokenRepo) Insert(ctx context.Context, t *token.Token) error {
	data, err := marshalToken(t)
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Insert] marshal")
	}

	ttl := tokenTTL(t)
	ok, err := r.client.SetNX(ctx, r.tokenKey(t.AccessToken), data, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Insert] setnx record")
	}
	if !ok {
		return token.ErrTokenExists
	}

	if t.RefreshToken != "" {
		ok, err := r.client.SetNX(ctx, r.refreshKey(t.RefreshToken), t.AccessToken, ttl).Result()
		if err != nil {
			return errors.Wrap(err, "[TokenRepo.Insert] setnx refresh index")
		}
		if !ok {
			r.client.Del(ctx, r.tokenKey(t.AccessToken))
			return token.ErrTokenExists
		}
	}

	if t.UserID != "" {
		// Consent auto-approval scans this set; members expire with the
		// record, stale entries are filtered on read.
		pipe := r.client.Pipeline()
		pipe.SAdd(ctx, r.ucKey(t.UserID, t.ClientID), t.AccessToken)
		pipe.Expire(ctx, r.ucKey(t.UserID, t.ClientID), ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return errors.Wrap(err, "[TokenRepo.Insert] index user client")
		}
	}
	return nil
}

func (r *TokenRepo) GetByAccessToken(ctx context.Context, accessToken string) (*token.Token, error) {
	data, err := r.client.Get(ctx, r.tokenKey(accessToken)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, "[TokenRepo.GetByAccessToken] get")
	}
	t, err := unmarshalToken(data)
	return t, errors.Wrap(err, "[TokenRepo.GetByAccessToken] unmarshal")
}

func (r *TokenRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*token.Token, error) {
	if refreshToken == "" {
		return nil, token.ErrNotFound
	}
	accessToken, err := r.client.Get(ctx, r.refreshKey(refreshToken)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, "[TokenRepo.GetByRefreshToken] get index")
	}
	return r.GetByAccessToken(ctx, accessToken)
}

func (r *TokenRepo) Revoke(ctx context.Context, accessToken string) error {
	err := revokeScript.Run(ctx, r.client, []string{r.tokenKey(accessToken)}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return errors.Wrap(err, "[TokenRepo.Revoke] script")
	}
	return nil
}

func (r *TokenRepo) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	accessToken, err := r.client.Get(ctx, r.refreshKey(refreshToken)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return errors.Wrap(err, "[TokenRepo.RevokeByRefreshToken] get index")
	}
	return r.Revoke(ctx, accessToken)
}

func (r *TokenRepo) Rotate(ctx context.Context, oldRefreshToken string, replacement *token.Token) error {
	// The old access token is needed to address the old record; the script
	// revalidates everything, so a race between this read and the script
	// still resolves to a single winner.
	oldAccess, err := r.client.Get(ctx, r.refreshKey(oldRefreshToken)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return token.ErrNotFound
		}
		return errors.Wrap(err, "[TokenRepo.Rotate] get index")
	}

	data, err := marshalToken(replacement)
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Rotate] marshal")
	}
	ttl := int(tokenTTL(replacement).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	keys := []string{
		r.refreshKey(oldRefreshToken),
		r.tokenKey(oldAccess),
		r.tokenKey(replacement.AccessToken),
		r.refreshKey(replacement.RefreshToken),
	}
	result, err := rotateScript.Run(ctx, r.client, keys, data, ttl, replacement.AccessToken).Text()
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Rotate] script")
	}
	switch result {
	case "OK":
	case "ALREADY_ROTATED":
		return token.ErrAlreadyRotated
	default:
		return token.ErrNotFound
	}

	if replacement.UserID != "" {
		pipe := r.client.Pipeline()
		pipe.SAdd(ctx, r.ucKey(replacement.UserID, replacement.ClientID), replacement.AccessToken)
		pipe.Expire(ctx, r.ucKey(replacement.UserID, replacement.ClientID), tokenTTL(replacement))
		if _, err := pipe.Exec(ctx); err != nil {
			return errors.Wrap(err, "[TokenRepo.Rotate] index user client")
		}
	}
	return nil
}

func (r *TokenRepo) ListActiveByUserClient(ctx context.Context, userID, clientID string, now time.Time) ([]*token.Token, error) {
	members, err := r.client.SMembers(ctx, r.ucKey(userID, clientID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[TokenRepo.ListActiveByUserClient] smembers")
	}

	var result []*token.Token
	for _, accessToken := range members {
		t, err := r.GetByAccessToken(ctx, accessToken)
		if err != nil {
			if errors.Is(err, token.ErrNotFound) {
				r.client.SRem(ctx, r.ucKey(userID, clientID), accessToken)
				continue
			}
			return nil, err
		}
		if t.Revoked || t.IsExpired(now) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// DeleteExpired is a no-op: Redis evicts expired records by key TTL.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
