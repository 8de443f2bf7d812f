package fakerepo

import (
	"context"
	"sort"
	"sync"

	"github.com/wheats/oauth2-server/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

// FakeClientRepo is a mutex-guarded in-memory client repo. It backs tests and
// the in-process store used in dev mode.
type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{clients: make(map[string]*clients.Client)}
}

func (cr *FakeClientRepo) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	client, ok := cr.clients[clientID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return client, nil
}

func (cr *FakeClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	cr.clients[client.ID] = client
	return nil
}

func (cr *FakeClientRepo) Delete(ctx context.Context, clientID string) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	delete(cr.clients, clientID)
	return nil
}

func (cr *FakeClientRepo) List(ctx context.Context, offset, limit int) ([]*clients.Client, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	all := make([]*clients.Client, 0, len(cr.clients))
	for _, c := range cr.clients {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
