package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard token endpoint response format defined in RFC 6749 §5.1,
// returned for all grant types.
type TokenResponse struct {
	// AccessToken is the opaque credential used to access protected resources.
	// Usage: Authorization: Bearer <access_token>
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer" in this implementation.
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// It rotates on every use; the previous value becomes unusable.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-separated list of granted scopes. May be narrower
	// than requested, never broader.
	Scope string `json:"scope,omitempty"`
}
