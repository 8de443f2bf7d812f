package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wheats/oauth2-server/authcode"
	"github.com/wheats/oauth2-server/oauth2"
)

// AuthCodeRepo stores authorization codes under code:<value> with a TTL
// matching the code's lifetime.
type AuthCodeRepo struct {
	client *goredis.Client
	prefix string
}

var _ authcode.Repo = (*AuthCodeRepo)(nil)

// consumeScript flips the consumed flag exactly once. Running as a script
// makes the read-check-write atomic; two concurrent redemptions can never
// both see consumed == false.
var consumeScript = goredis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end
local code = cjson.decode(data)
if code.consumed then
    return 'ALREADY_CONSUMED'
end
code.consumed = true
redis.call('SET', KEYS[1], cjson.encode(code), 'KEEPTTL')
return 'OK'
`)

type authCodeJSON struct {
	Code                string `json:"code"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope"`
	UserID              string `json:"user_id"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	ExpiresAt           int64  `json:"expires_at"`
	Consumed            bool   `json:"consumed"`
	CreatedAt           int64  `json:"created_at"`
}

func (r *AuthCodeRepo) key(code string) string {
	return r.prefix + "code:" + code
}

func (r *AuthCodeRepo) Insert(ctx context.Context, code *authcode.AuthorizationCode) error {
	data, err := json.Marshal(&authCodeJSON{
		Code:                code.Code,
		ClientID:            code.ClientID,
		RedirectURI:         code.RedirectURI,
		Scope:               code.Scope,
		UserID:              code.UserID,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: string(code.CodeChallengeMethod),
		ExpiresAt:           code.ExpiresAt.Unix(),
		Consumed:            code.Consumed,
		CreatedAt:           code.CreatedAt.Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "[AuthCodeRepo.Insert] marshal")
	}

	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := r.client.SetNX(ctx, r.key(code.Code), data, ttl).Result()
	if err != nil {
		return errors.Wrap(err, "[AuthCodeRepo.Insert] setnx")
	}
	if !ok {
		return authcode.ErrCodeExists
	}
	return nil
}

func (r *AuthCodeRepo) Get(ctx context.Context, code string) (*authcode.AuthorizationCode, error) {
	data, err := r.client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, authcode.ErrNotFound
		}
		return nil, errors.Wrap(err, "[AuthCodeRepo.Get] get")
	}

	var stored authCodeJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "[AuthCodeRepo.Get] unmarshal")
	}
	return &authcode.AuthorizationCode{
		Code:                stored.Code,
		ClientID:            stored.ClientID,
		RedirectURI:         stored.RedirectURI,
		Scope:               stored.Scope,
		UserID:              stored.UserID,
		CodeChallenge:       stored.CodeChallenge,
		CodeChallengeMethod: oauth2.CodeMethodType(stored.CodeChallengeMethod),
		ExpiresAt:           time.Unix(stored.ExpiresAt, 0).UTC(),
		Consumed:            stored.Consumed,
		CreatedAt:           time.Unix(stored.CreatedAt, 0).UTC(),
	}, nil
}

func (r *AuthCodeRepo) Consume(ctx context.Context, code string) error {
	result, err := consumeScript.Run(ctx, r.client, []string{r.key(code)}).Text()
	if err != nil {
		return errors.Wrap(err, "[AuthCodeRepo.Consume] script")
	}
	switch result {
	case "OK":
		return nil
	case "ALREADY_CONSUMED":
		return authcode.ErrAlreadyConsumed
	default:
		return authcode.ErrNotFound
	}
}

// DeleteExpired is a no-op: Redis evicts expired codes by key TTL.
func (r *AuthCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
