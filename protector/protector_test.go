package protector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/credentials"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/protector"
	"github.com/wheats/oauth2-server/token"
	tokenfakerepo "github.com/wheats/oauth2-server/token/repofake"
	"github.com/wheats/oauth2-server/users"
	userfakerepo "github.com/wheats/oauth2-server/users/repofake"
)

const (
	testUserID   = "user-1"
	testClientID = "web-shop"
)

type fixture struct {
	userRepo  *userfakerepo.FakeUserRepo
	tokens    *token.Manager
	protector *protector.Protector
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		userRepo: userfakerepo.NewFakeUserRepo(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	nowFunc := func() time.Time { return f.now }
	f.tokens = token.NewManager(tokenfakerepo.NewFakeTokenRepo(), credentials.New(), token.WithNowFunc(nowFunc))

	p, err := protector.New(f.tokens, f.userRepo, protector.WithNowFunc(nowFunc))
	require.NoError(t, err)
	f.protector = p

	require.NoError(t, f.userRepo.Upsert(context.Background(), &users.User{
		ID:       testUserID,
		Username: "customer1",
		Role:     users.RoleCustomer,
	}))
	return f
}

func (f *fixture) issue(t *testing.T, grantedScope string) *token.Token {
	t.Helper()

	client := &clients.Client{ID: testClientID, Type: clients.ClientTypeConfidential}
	user := &users.User{ID: testUserID}
	issued, err := f.tokens.Issue(context.Background(), client, user, grantedScope, false)
	require.NoError(t, err)
	return issued
}

func TestValidateBearer(t *testing.T) {
	f := setup(t)
	issued := f.issue(t, "profile customer")

	auth, err := f.protector.ValidateBearer(context.Background(), issued.AccessToken, "profile")
	require.NoError(t, err)
	require.Equal(t, testUserID, auth.UserID)
	require.Equal(t, testClientID, auth.ClientID)
	require.Equal(t, issued.Scope, auth.Scope)
	require.NotNil(t, auth.User)
	require.Equal(t, "customer1", auth.User.Username)

	// Empty required scope passes any live token.
	_, err = f.protector.ValidateBearer(context.Background(), issued.AccessToken, "")
	require.NoError(t, err)
}

func TestValidateBearerInvalidToken(t *testing.T) {
	f := setup(t)
	issued := f.issue(t, "profile")

	t.Run("missing", func(t *testing.T) {
		_, err := f.protector.ValidateBearer(context.Background(), "", "profile")
		require.Equal(t, oauth2.ErrCodeInvalidToken, oauth2.AsError(err).Code)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := f.protector.ValidateBearer(context.Background(), "no-such-token", "profile")
		require.Equal(t, oauth2.ErrCodeInvalidToken, oauth2.AsError(err).Code)
	})

	t.Run("expired", func(t *testing.T) {
		f.now = f.now.Add(2 * time.Hour)
		defer func() { f.now = f.now.Add(-2 * time.Hour) }()

		_, err := f.protector.ValidateBearer(context.Background(), issued.AccessToken, "profile")
		require.Equal(t, oauth2.ErrCodeInvalidToken, oauth2.AsError(err).Code)
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, f.tokens.Revoke(context.Background(), issued.AccessToken, ""))

		_, err := f.protector.ValidateBearer(context.Background(), issued.AccessToken, "profile")
		require.Equal(t, oauth2.ErrCodeInvalidToken, oauth2.AsError(err).Code)
	})
}

func TestValidateBearerInsufficientScope(t *testing.T) {
	f := setup(t)
	issued := f.issue(t, "profile")

	// Scope containment, not mere overlap: "profile store" is not covered
	// by a token scoped to "profile".
	_, err := f.protector.ValidateBearer(context.Background(), issued.AccessToken, "profile store")
	require.Equal(t, oauth2.ErrCodeInsufficientScope, oauth2.AsError(err).Code)

	_, err = f.protector.ValidateBearer(context.Background(), issued.AccessToken, "store")
	require.Equal(t, oauth2.ErrCodeInsufficientScope, oauth2.AsError(err).Code)
}

func TestValidateBearerDeletedUser(t *testing.T) {
	f := setup(t)
	issued := f.issue(t, "profile")

	require.NoError(t, f.userRepo.Delete(context.Background(), testUserID))

	_, err := f.protector.ValidateBearer(context.Background(), issued.AccessToken, "profile")
	require.Equal(t, oauth2.ErrCodeInvalidToken, oauth2.AsError(err).Code)
}

func TestValidateBearerClientOnlyToken(t *testing.T) {
	f := setup(t)

	client := &clients.Client{ID: testClientID, Type: clients.ClientTypeConfidential}
	issued, err := f.tokens.Issue(context.Background(), client, nil, "profile", false)
	require.NoError(t, err)

	auth, err := f.protector.ValidateBearer(context.Background(), issued.AccessToken, "profile")
	require.NoError(t, err)
	require.Nil(t, auth.User)
	require.Empty(t, auth.UserID)
	require.Equal(t, testClientID, auth.ClientID)
}
