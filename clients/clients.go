package clients

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/scope"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Client is a registered OAuth2 client. Clients are created by an
// administrative action and are immutable thereafter; rotation is out of
// scope.
type Client struct {
	ID            string                           `json:"id"`
	Name          string                           `json:"name"`
	Type          ClientType                       `json:"type"`
	SecretHash    string                           `json:"-"` // bcrypt hash; empty for public clients
	RedirectURIs  []string                         `json:"redirect_uris"`
	GrantTypes    []oauth2.GrantType               `json:"grant_types"`
	ResponseTypes []oauth2.ResponseType            `json:"response_types"`
	Scope         string                           `json:"scope"` // space-delimited allowed scopes
	AuthMethods   []oauth2.TokenEndpointAuthMethod `json:"auth_methods"`
}

// IsPublic returns true if the client cannot keep a secret.
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// Authenticate checks the presented secret under the given token endpoint
// auth method. Public clients authenticate only via the "none" method with an
// empty secret, and only when "none" is among their declared methods.
// Secret comparison is constant-time.
func (c *Client) Authenticate(secret string, method oauth2.TokenEndpointAuthMethod) bool {
	if !c.allowsAuthMethod(method) {
		return false
	}
	if c.IsPublic() {
		return method == oauth2.AuthMethodNone && subtle.ConstantTimeCompare([]byte(secret), nil) == 1
	}
	if method == oauth2.AuthMethodNone || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)) == nil
}

// CheckRedirectURI tests the URI against the registered set. Matching is
// exact string equality: no partial matching, no wildcards, and a trailing
// slash is a different URI.
func (c *Client) CheckRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// CheckGrantType tests grant type membership.
func (c *Client) CheckGrantType(gt oauth2.GrantType) bool {
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// CheckResponseType tests response type membership.
func (c *Client) CheckResponseType(rt oauth2.ResponseType) bool {
	for _, r := range c.ResponseTypes {
		if r == rt {
			return true
		}
	}
	return false
}

// AllowedScope intersects the requested scope with the client's allowed
// scopes, returning the granted scope in canonical form. An empty request
// yields an empty grant.
func (c *Client) AllowedScope(requested string) string {
	return scope.Intersect(c.Scope, requested)
}

func (c *Client) allowsAuthMethod(method oauth2.TokenEndpointAuthMethod) bool {
	for _, m := range c.AuthMethods {
		if m == method {
			return true
		}
	}
	return false
}

// HashSecret produces the stored form of a client secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(hash), err
}
