package server

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const sessionCookieName = "wheats_session"

// sessionManager issues and verifies the signed login session cookie. The
// cookie only identifies the logged-in end user to the authorization pages;
// API access always goes through bearer tokens.
type sessionManager struct {
	secret []byte
	maxAge time.Duration
}

func newSessionManager(secret string, maxAge time.Duration) *sessionManager {
	return &sessionManager{secret: []byte(secret), maxAge: maxAge}
}

type sessionClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func (sm *sessionManager) issue(userID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.maxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	return signed, errors.Wrap(err, "[sessionManager.issue] sign")
}

func (sm *sessionManager) verify(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return sm.secret, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "[sessionManager.verify] parse")
	}
	if !token.Valid || claims.UserID == "" {
		return "", errors.New("[sessionManager.verify] invalid session")
	}
	return claims.UserID, nil
}

func (sm *sessionManager) setCookie(w http.ResponseWriter, userID string) error {
	signed, err := sm.issue(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(sm.maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (sm *sessionManager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// currentUserID resolves the session cookie to a user ID, empty when the
// request carries no valid session.
func (sm *sessionManager) currentUserID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	userID, err := sm.verify(cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}
