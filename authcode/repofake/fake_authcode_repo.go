package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/wheats/oauth2-server/authcode"
)

var _ authcode.Repo = (*FakeAuthCodeRepo)(nil)

// FakeAuthCodeRepo is a mutex-guarded in-memory code repo. Consume holds the
// write lock across check-and-set, which gives the same exactly-once
// guarantee a conditional UPDATE gives the SQL store.
type FakeAuthCodeRepo struct {
	codes map[string]*authcode.AuthorizationCode
	lock  sync.Mutex
}

func NewFakeAuthCodeRepo() *FakeAuthCodeRepo {
	return &FakeAuthCodeRepo{codes: make(map[string]*authcode.AuthorizationCode)}
}

func (cr *FakeAuthCodeRepo) Insert(ctx context.Context, code *authcode.AuthorizationCode) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	if _, ok := cr.codes[code.Code]; ok {
		return authcode.ErrCodeExists
	}
	stored := *code
	cr.codes[code.Code] = &stored
	return nil
}

func (cr *FakeAuthCodeRepo) Get(ctx context.Context, code string) (*authcode.AuthorizationCode, error) {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	stored, ok := cr.codes[code]
	if !ok {
		return nil, authcode.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (cr *FakeAuthCodeRepo) Consume(ctx context.Context, code string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	stored, ok := cr.codes[code]
	if !ok {
		return authcode.ErrNotFound
	}
	if stored.Consumed {
		return authcode.ErrAlreadyConsumed
	}
	stored.Consumed = true
	return nil
}

func (cr *FakeAuthCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	deleted := 0
	for key, stored := range cr.codes {
		if stored.IsExpired(now) {
			delete(cr.codes, key)
			deleted++
		}
	}
	return deleted, nil
}
