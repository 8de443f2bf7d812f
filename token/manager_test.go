package token_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/credentials"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/token"
	"github.com/wheats/oauth2-server/token/repofake"
	"github.com/wheats/oauth2-server/users"
)

type fixture struct {
	repo    *repofake.FakeTokenRepo
	manager *token.Manager
	client  *clients.Client
	user    *users.User
	now     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:   repofake.NewFakeTokenRepo(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		client: &clients.Client{ID: "client-1", Scope: "profile customer store"},
		user:   &users.User{ID: "user-1", Username: "customer1"},
	}
	f.manager = token.NewManager(f.repo, credentials.New(), token.WithNowFunc(func() time.Time { return f.now }))
	return f
}

func TestIssueWithRefresh(t *testing.T) {
	f := setup(t)

	issued, err := f.manager.Issue(context.Background(), f.client, f.user, "profile store", true)
	require.NoError(t, err)
	require.NotEmpty(t, issued.AccessToken)
	require.NotEmpty(t, issued.RefreshToken)
	require.Equal(t, "profile store", issued.Scope)
	require.Equal(t, f.now.Add(token.DefaultTTL), issued.ExpiresAt)
	require.Equal(t, 3600, issued.ExpiresIn(f.now))
}

func TestIssueWithoutRefreshOrUser(t *testing.T) {
	f := setup(t)

	issued, err := f.manager.Issue(context.Background(), f.client, nil, "profile", false)
	require.NoError(t, err)
	require.Empty(t, issued.RefreshToken)
	require.Empty(t, issued.UserID)
}

func TestRotateInheritsScopeVerbatim(t *testing.T) {
	f := setup(t)

	old, err := f.manager.Issue(context.Background(), f.client, f.user, "profile store", true)
	require.NoError(t, err)

	rotated, err := f.manager.Rotate(context.Background(), old, "")
	require.NoError(t, err)
	require.Equal(t, old.Scope, rotated.Scope)
	require.NotEqual(t, old.AccessToken, rotated.AccessToken)
	require.NotEqual(t, old.RefreshToken, rotated.RefreshToken)

	// The old refresh token is unusable after rotation.
	_, err = f.manager.LookupRefresh(context.Background(), old.RefreshToken)
	require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestRotateNarrowsScope(t *testing.T) {
	f := setup(t)

	old, err := f.manager.Issue(context.Background(), f.client, f.user, "profile store", true)
	require.NoError(t, err)

	rotated, err := f.manager.Rotate(context.Background(), old, "profile")
	require.NoError(t, err)
	require.Equal(t, "profile", rotated.Scope)
}

func TestRotateRejectsScopeEscalation(t *testing.T) {
	f := setup(t)

	old, err := f.manager.Issue(context.Background(), f.client, f.user, "profile", true)
	require.NoError(t, err)

	_, err = f.manager.Rotate(context.Background(), old, "profile store")
	require.ErrorIs(t, err, oauth2.ErrInvalidScope)

	// A rejected escalation does not burn the refresh token.
	_, err = f.manager.LookupRefresh(context.Background(), old.RefreshToken)
	require.NoError(t, err)
}

func TestRotateReplayFails(t *testing.T) {
	f := setup(t)

	old, err := f.manager.Issue(context.Background(), f.client, f.user, "profile", true)
	require.NoError(t, err)

	_, err = f.manager.Rotate(context.Background(), old, "")
	require.NoError(t, err)

	// Replay of the already-rotated token fails, whether or not the new
	// token was ever used.
	_, err = f.manager.Rotate(context.Background(), old, "")
	require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestRotateConcurrentDuplicates(t *testing.T) {
	f := setup(t)

	old, err := f.manager.Issue(context.Background(), f.client, f.user, "profile", true)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Rotate(context.Background(), old, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
		}
	}
	require.Equal(t, 1, succeeded, "exactly one concurrent rotation may succeed")
}

func TestLookupRefreshExpired(t *testing.T) {
	f := setup(t)

	issued, err := f.manager.Issue(context.Background(), f.client, f.user, "profile", true)
	require.NoError(t, err)

	f.now = f.now.Add(token.DefaultTTL + time.Second)
	_, err = f.manager.LookupRefresh(context.Background(), issued.RefreshToken)
	require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestRevokeIdempotent(t *testing.T) {
	f := setup(t)

	issued, err := f.manager.Issue(context.Background(), f.client, f.user, "profile", true)
	require.NoError(t, err)

	require.NoError(t, f.manager.Revoke(context.Background(), issued.AccessToken, ""))
	stored, err := f.manager.LookupAccess(context.Background(), issued.AccessToken)
	require.NoError(t, err)
	require.True(t, stored.Revoked)

	// Second revocation has the same observable effect as the first.
	require.NoError(t, f.manager.Revoke(context.Background(), issued.AccessToken, ""))
	stored, err = f.manager.LookupAccess(context.Background(), issued.AccessToken)
	require.NoError(t, err)
	require.True(t, stored.Revoked)

	// Revoking an unknown token is not an error.
	require.NoError(t, f.manager.Revoke(context.Background(), "no-such-token", ""))
}

func TestRevokeByRefreshHint(t *testing.T) {
	f := setup(t)

	issued, err := f.manager.Issue(context.Background(), f.client, f.user, "profile", true)
	require.NoError(t, err)

	require.NoError(t, f.manager.Revoke(context.Background(), issued.RefreshToken, "refresh_token"))
	stored, err := f.manager.LookupAccess(context.Background(), issued.AccessToken)
	require.NoError(t, err)
	require.True(t, stored.Revoked)
}

func TestHasActiveTokenCovering(t *testing.T) {
	f := setup(t)

	_, err := f.manager.Issue(context.Background(), f.client, f.user, "profile store", true)
	require.NoError(t, err)

	covered, err := f.manager.HasActiveTokenCovering(context.Background(), f.user.ID, f.client.ID, "profile")
	require.NoError(t, err)
	require.True(t, covered)

	covered, err = f.manager.HasActiveTokenCovering(context.Background(), f.user.ID, f.client.ID, "profile admin")
	require.NoError(t, err)
	require.False(t, covered)

	f.now = f.now.Add(token.DefaultTTL + time.Second)
	covered, err = f.manager.HasActiveTokenCovering(context.Background(), f.user.ID, f.client.ID, "profile")
	require.NoError(t, err)
	require.False(t, covered)
}
