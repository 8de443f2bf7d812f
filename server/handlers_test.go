package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/authcode/repofake"
	clientfakerepo "github.com/wheats/oauth2-server/clients/fakerepo"
	"github.com/wheats/oauth2-server/internal/config"
	"github.com/wheats/oauth2-server/server"
	tokenrepofake "github.com/wheats/oauth2-server/token/repofake"
	userrepofake "github.com/wheats/oauth2-server/users/repofake"
)

const (
	testClientID     = "android_app_client"
	testClientSecret = "android_app_secret"
	testRedirectURI  = "http://localhost:3000/callback"
	testUsername     = "customer1"
	testPassword     = "password123"
	testState        = "random-state-value"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	t.Setenv("ENV", "DEV") // enables the seed data
	t.Setenv("ENABLE_RATE_LIMITING", "false")

	s, err := server.New(config.New(), server.Repos{
		Users:   userrepofake.NewFakeUserRepo(),
		Clients: clientfakerepo.NewFakeClientRepo(),
		Codes:   repofake.NewFakeAuthCodeRepo(),
		Tokens:  tokenrepofake.NewFakeTokenRepo(),
	})
	require.NoError(t, err)
	return s
}

// login submits the seed user's credentials and returns the session cookie.
func login(t *testing.T, s *server.Server) *http.Cookie {
	t.Helper()

	form := url.Values{
		"username": {testUsername},
		"password": {testPassword},
		"next":     {"/"},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "wheats_session" && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func authorizeQuery(scope string) url.Values {
	return url.Values{
		"response_type": {"code"},
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"scope":         {scope},
		"state":         {testState},
	}
}

// obtainCode drives login, authorize and consent approval, returning the
// authorization code from the redirect.
func obtainCode(t *testing.T, s *server.Server, scope string) string {
	t.Helper()

	session := login(t, s)

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+authorizeQuery(scope).Encode(), nil)
	req.AddCookie(session)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Wheats Android App")

	form := authorizeQuery(scope)
	form.Set("action", "approve")
	consentReq := httptest.NewRequest(http.MethodPost, "/auth/consent", strings.NewReader(form.Encode()))
	consentReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	consentReq.AddCookie(session)
	consentRec := httptest.NewRecorder()
	s.ServeHTTP(consentRec, consentReq)
	require.Equal(t, http.StatusFound, consentRec.Code)

	redirect, err := url.Parse(consentRec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(redirect.String(), testRedirectURI))
	require.Equal(t, testState, redirect.Query().Get("state"))
	code := redirect.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func postToken(t *testing.T, s *server.Server, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeToken(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthorizationCodeFlow(t *testing.T) {
	s := newTestServer(t)
	code := obtainCode(t, s, "profile customer")

	rec := postToken(t, s, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	body := decodeToken(t, rec)
	require.Equal(t, "Bearer", body["token_type"])
	require.Equal(t, "customer profile", body["scope"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])

	// The code is single-use.
	replay := postToken(t, s, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	require.Equal(t, http.StatusBadRequest, replay.Code)
	require.Contains(t, replay.Body.String(), "invalid_grant")
}

func TestAuthorizeRedirectsToLoginWhenAnonymous(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+authorizeQuery("profile").Encode(), nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Sign in")
}

func TestAuthorizeUnknownClientDoesNotRedirect(t *testing.T) {
	s := newTestServer(t)

	query := authorizeQuery("profile")
	query.Set("client_id", "nobody")
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorizeInvalidScopeRedirectsWithError(t *testing.T) {
	s := newTestServer(t)

	query := authorizeQuery("admin")
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_scope", redirect.Query().Get("error"))
	require.Equal(t, testState, redirect.Query().Get("state"))
}

func TestConsentDenialRedirectsWithAccessDenied(t *testing.T) {
	s := newTestServer(t)
	session := login(t, s)

	form := authorizeQuery("profile")
	form.Set("action", "deny")
	req := httptest.NewRequest(http.MethodPost, "/auth/consent", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(session)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	redirect, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", redirect.Query().Get("error"))
	require.Equal(t, testState, redirect.Query().Get("state"))
	require.Empty(t, redirect.Query().Get("code"))
}

func TestTokenEndpointRejectsBadClientSecret(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, "wrong-secret")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid_client")
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

func TestPasswordGrantAndRefresh(t *testing.T) {
	s := newTestServer(t)

	body := decodeToken(t, postToken(t, s, url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
		"scope":      {"profile customer"},
	}))
	refreshToken, _ := body["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	refreshed := decodeToken(t, postToken(t, s, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}))
	require.Equal(t, body["scope"], refreshed["scope"])

	// Scope escalation on refresh is rejected.
	escalation := postToken(t, s, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshed["refresh_token"].(string)},
		"scope":         {"profile customer store"},
	})
	require.Equal(t, http.StatusBadRequest, escalation.Code)
	require.Contains(t, escalation.Body.String(), "invalid_scope")

	// The rotated-away refresh token is dead.
	replay := postToken(t, s, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	require.Equal(t, http.StatusBadRequest, replay.Code)
	require.Contains(t, replay.Body.String(), "invalid_grant")
}

func apiGet(s *server.Server, path, accessToken string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestProtectedResources(t *testing.T) {
	s := newTestServer(t)

	body := decodeToken(t, postToken(t, s, url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
		"scope":      {"profile customer"},
	}))
	accessToken := body["access_token"].(string)

	me := apiGet(s, "/api/me", accessToken)
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), testUsername)

	orders := apiGet(s, "/api/customer/orders", accessToken)
	require.Equal(t, http.StatusOK, orders.Code)

	// Token lacks the store scope.
	dashboard := apiGet(s, "/api/store/dashboard", accessToken)
	require.Equal(t, http.StatusForbidden, dashboard.Code)
	require.Contains(t, dashboard.Header().Get("WWW-Authenticate"), "insufficient_scope")

	// No token at all.
	anonymous := apiGet(s, "/api/me", "")
	require.Equal(t, http.StatusUnauthorized, anonymous.Code)
	require.Contains(t, anonymous.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestStoreDashboardRequiresStoreRole(t *testing.T) {
	s := newTestServer(t)

	// storeowner1 holds the store role and the store scope.
	body := decodeToken(t, postToken(t, s, url.Values{
		"grant_type": {"password"},
		"username":   {"storeowner1"},
		"password":   {testPassword},
		"scope":      {"profile store"},
	}))
	accessToken := body["access_token"].(string)

	dashboard := apiGet(s, "/api/store/dashboard", accessToken)
	require.Equal(t, http.StatusOK, dashboard.Code)
	require.Contains(t, dashboard.Body.String(), "storeowner1")

	// A store-scoped token for a customer is still refused by role.
	customerBody := decodeToken(t, postToken(t, s, url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
		"scope":      {"profile store"},
	}))
	refused := apiGet(s, "/api/store/dashboard", customerBody["access_token"].(string))
	require.Equal(t, http.StatusForbidden, refused.Code)
}

func TestRevocationEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := decodeToken(t, postToken(t, s, url.Values{
		"grant_type": {"password"},
		"username":   {testUsername},
		"password":   {testPassword},
		"scope":      {"profile"},
	}))
	accessToken := body["access_token"].(string)

	form := url.Values{"token": {accessToken}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, testClientSecret)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The revoked token no longer grants access.
	me := apiGet(s, "/api/me", accessToken)
	require.Equal(t, http.StatusUnauthorized, me.Code)

	// Revoking an unknown token still answers 200.
	unknown := url.Values{"token": {"no-such-token"}}
	req = httptest.NewRequest(http.MethodPost, "/oauth/revoke", strings.NewReader(unknown.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, testClientSecret)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestRegisterUserAndLogin(t *testing.T) {
	s := newTestServer(t)

	payload := `{"username":"newbaker","email":"baker@wheats.local","password":"hunter22","role":"store"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeToken(t, postToken(t, s, url.Values{
		"grant_type": {"password"},
		"username":   {"newbaker"},
		"password":   {"hunter22"},
		"scope":      {"profile"},
	}))
	require.NotEmpty(t, body["access_token"])

	// Duplicate usernames are refused.
	req = httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}
