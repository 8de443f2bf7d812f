package authcode

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"github.com/wheats/oauth2-server/oauth2"
)

// CodeTTL is the default lifetime of an authorization code (RFC 6749
// recommends a maximum of 10 minutes).
const CodeTTL = 300 * time.Second

// AuthorizationCode is a short-lived, single-use credential binding a
// client, a user, a redirect URI and a granted scope. It is redeemable at
// most once, only by the client it was issued to, before ExpiresAt.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	RedirectURI         string // must equal the URI used at issuance
	Scope               string // canonical, subset of the client's allowed scopes
	UserID              string
	CodeChallenge       string
	CodeChallengeMethod oauth2.CodeMethodType
	ExpiresAt           time.Time
	Consumed            bool
	CreatedAt           time.Time
}

// IsExpired is deterministic from ExpiresAt and the supplied clock.
func (ac *AuthorizationCode) IsExpired(now time.Time) bool {
	return !now.Before(ac.ExpiresAt)
}

// HasChallenge reports whether the code was issued with a PKCE challenge.
func (ac *AuthorizationCode) HasChallenge() bool {
	return ac.CodeChallenge != ""
}

// VerifyChallenge checks a code_verifier against the stored challenge under
// the declared method: "plain" is direct equality, "S256" is
// base64url(SHA-256(verifier)) equality. Comparison is constant-time.
func (ac *AuthorizationCode) VerifyChallenge(verifier string) bool {
	if !ac.HasChallenge() {
		return verifier == ""
	}
	switch ac.CodeChallengeMethod {
	case oauth2.CodeMethodTypeS256:
		hash := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(hash[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(ac.CodeChallenge)) == 1
	case oauth2.CodeMethodTypePlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(ac.CodeChallenge)) == 1
	}
	return false
}
