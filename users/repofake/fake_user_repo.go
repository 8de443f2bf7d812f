package repofake

import (
	"context"
	"sync"

	"github.com/wheats/oauth2-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is a mutex-guarded in-memory user repo for tests and dev mode.
type FakeUserRepo struct {
	byID       map[string]*users.User
	byUsername map[string]string // username -> id
	lock       sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		byID:       make(map[string]*users.User),
		byUsername: make(map[string]string),
	}
}

func (ur *FakeUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}

func (ur *FakeUserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.byUsername[username]
	if !ok {
		return nil, users.ErrNotFound
	}
	return ur.byID[id], nil
}

func (ur *FakeUserRepo) Upsert(ctx context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	ur.byID[user.ID] = user
	ur.byUsername[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(ctx context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.byID[id]
	if !ok {
		return nil
	}
	delete(ur.byUsername, user.Username)
	delete(ur.byID, id)
	return nil
}
