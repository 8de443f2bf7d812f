package authcode_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/authcode"
	"github.com/wheats/oauth2-server/authcode/repofake"
	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/credentials"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/users"
)

const (
	testRedirectURI  = "https://a/cb"
	testCodeVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type fixture struct {
	repo    *repofake.FakeAuthCodeRepo
	manager *authcode.Manager
	client  *clients.Client
	user    *users.User
	now     time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		repo: repofake.NewFakeAuthCodeRepo(),
		now:  now,
		client: &clients.Client{
			ID:           "client-1",
			RedirectURIs: []string{testRedirectURI},
			Scope:        "profile store",
		},
		user: &users.User{ID: "user-1", Username: "customer1"},
	}
	f.manager = authcode.NewManager(f.repo, credentials.New(), authcode.WithNowFunc(func() time.Time { return f.now }))
	return f
}

func TestIssueIntersectsScope(t *testing.T) {
	f := setup(t)

	code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile store admin", nil)
	require.NoError(t, err)
	require.Equal(t, "profile store", code.Scope)
	require.Equal(t, f.now.Add(authcode.CodeTTL), code.ExpiresAt)
}

func TestRedeemSucceedsExactlyOnce(t *testing.T) {
	f := setup(t)

	code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile", nil)
	require.NoError(t, err)

	redeemed, err := f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, "")
	require.NoError(t, err)
	require.Equal(t, "profile", redeemed.Scope)
	require.Equal(t, "user-1", redeemed.UserID)

	_, err = f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, "")
	require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestRedeemConcurrentDuplicates(t *testing.T) {
	f := setup(t)

	code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile", nil)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, "")
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
	require.Equal(t, 1, succeeded, "exactly one concurrent redemption may succeed")
}

func TestRedeemFailures(t *testing.T) {
	f := setup(t)

	otherClient := &clients.Client{ID: "client-2", RedirectURIs: []string{testRedirectURI}}

	tests := []struct {
		name   string
		redeem func(t *testing.T, code *authcode.AuthorizationCode) error
	}{
		{
			name: "unknown code",
			redeem: func(t *testing.T, code *authcode.AuthorizationCode) error {
				_, err := f.manager.Redeem(context.Background(), "no-such-code", f.client, testRedirectURI, "")
				return err
			},
		},
		{
			name: "client mismatch",
			redeem: func(t *testing.T, code *authcode.AuthorizationCode) error {
				_, err := f.manager.Redeem(context.Background(), code.Code, otherClient, testRedirectURI, "")
				return err
			},
		},
		{
			name: "redirect URI trailing slash",
			redeem: func(t *testing.T, code *authcode.AuthorizationCode) error {
				_, err := f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI+"/", "")
				return err
			},
		},
		{
			name: "expired code",
			redeem: func(t *testing.T, code *authcode.AuthorizationCode) error {
				f.now = f.now.Add(authcode.CodeTTL + time.Second)
				_, err := f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, "")
				return err
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile", nil)
			require.NoError(t, err)

			err = tc.redeem(t, code)
			require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
		})
	}
}

func TestRedeemPKCES256(t *testing.T) {
	f := setup(t)

	hash := sha256.Sum256([]byte(testCodeVerifier))
	challenge := base64.RawURLEncoding.EncodeToString(hash[:])

	code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile",
		&authcode.PKCE{Challenge: challenge, Method: oauth2.CodeMethodTypeS256})
	require.NoError(t, err)

	_, err = f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, "wrong-verifier-wrong-verifier-wrong-verifier")
	require.ErrorIs(t, err, oauth2.ErrInvalidGrant)

	// A failed verifier does not consume the code; the correct one still works.
	redeemed, err := f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, testCodeVerifier)
	require.NoError(t, err)
	require.True(t, redeemed.Consumed)
}

func TestRedeemPKCEPlain(t *testing.T) {
	f := setup(t)

	code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile",
		&authcode.PKCE{Challenge: testCodeVerifier, Method: oauth2.CodeMethodTypePlain})
	require.NoError(t, err)

	redeemed, err := f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, testCodeVerifier)
	require.NoError(t, err)
	require.Equal(t, code.Code, redeemed.Code)
}

func TestRedeemMissingVerifierForPKCECode(t *testing.T) {
	f := setup(t)

	code, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile",
		&authcode.PKCE{Challenge: testCodeVerifier, Method: oauth2.CodeMethodTypePlain})
	require.NoError(t, err)

	_, err = f.manager.Redeem(context.Background(), code.Code, f.client, testRedirectURI, "")
	require.ErrorIs(t, err, oauth2.ErrInvalidGrant)
}

func TestDeleteExpired(t *testing.T) {
	f := setup(t)

	_, err := f.manager.Issue(context.Background(), f.client, f.user, testRedirectURI, "profile", nil)
	require.NoError(t, err)

	f.now = f.now.Add(authcode.CodeTTL + time.Minute)
	deleted, err := f.manager.DeleteExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
}
