package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/wheats/oauth2-server/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is a mutex-guarded in-memory token repo. Rotate holds the
// write lock across revoke-and-insert, matching the transactional guarantee
// of the SQL store.
type FakeTokenRepo struct {
	byAccess  map[string]*token.Token
	byRefresh map[string]string // refresh token -> access token
	lock      sync.Mutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		byAccess:  make(map[string]*token.Token),
		byRefresh: make(map[string]string),
	}
}

func (tr *FakeTokenRepo) Insert(ctx context.Context, t *token.Token) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	return tr.insertLocked(t)
}

func (tr *FakeTokenRepo) insertLocked(t *token.Token) error {
	if _, ok := tr.byAccess[t.AccessToken]; ok {
		return token.ErrTokenExists
	}
	if t.RefreshToken != "" {
		if _, ok := tr.byRefresh[t.RefreshToken]; ok {
			return token.ErrTokenExists
		}
		tr.byRefresh[t.RefreshToken] = t.AccessToken
	}
	stored := *t
	tr.byAccess[t.AccessToken] = &stored
	return nil
}

func (tr *FakeTokenRepo) GetByAccessToken(ctx context.Context, accessToken string) (*token.Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	stored, ok := tr.byAccess[accessToken]
	if !ok {
		return nil, token.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (tr *FakeTokenRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (*token.Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	access, ok := tr.byRefresh[refreshToken]
	if !ok {
		return nil, token.ErrNotFound
	}
	copied := *tr.byAccess[access]
	return &copied, nil
}

func (tr *FakeTokenRepo) Revoke(ctx context.Context, accessToken string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if stored, ok := tr.byAccess[accessToken]; ok {
		stored.Revoked = true
	}
	return nil
}

func (tr *FakeTokenRepo) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if access, ok := tr.byRefresh[refreshToken]; ok {
		tr.byAccess[access].Revoked = true
	}
	return nil
}

func (tr *FakeTokenRepo) Rotate(ctx context.Context, oldRefreshToken string, replacement *token.Token) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	access, ok := tr.byRefresh[oldRefreshToken]
	if !ok {
		return token.ErrNotFound
	}
	old := tr.byAccess[access]
	if old.Revoked {
		return token.ErrAlreadyRotated
	}
	old.Revoked = true
	return tr.insertLocked(replacement)
}

func (tr *FakeTokenRepo) ListActiveByUserClient(ctx context.Context, userID, clientID string, now time.Time) ([]*token.Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	var active []*token.Token
	for _, stored := range tr.byAccess {
		if stored.UserID != userID || stored.ClientID != clientID {
			continue
		}
		if stored.Revoked || stored.IsExpired(now) {
			continue
		}
		copied := *stored
		active = append(active, &copied)
	}
	return active, nil
}

func (tr *FakeTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	deleted := 0
	for access, stored := range tr.byAccess {
		if stored.IsExpired(now) || stored.Revoked {
			if stored.RefreshToken != "" {
				delete(tr.byRefresh, stored.RefreshToken)
			}
			delete(tr.byAccess, access)
			deleted++
		}
	}
	return deleted, nil
}
