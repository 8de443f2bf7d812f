package oauth2

// ResponseType represents the OAuth 2.0 response type requested at the
// authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// Returns an authorization code that must be exchanged for tokens at the token endpoint.
	CodeResponseType ResponseType = "code"
)

// CodeMethodType represents the PKCE (Proof Key for Code Exchange) challenge method.
// Used to prevent authorization code interception attacks (especially for public clients).
type CodeMethodType string

const (
	// CodeMethodTypeS256 indicates SHA-256 hashing is used for the code challenge.
	// Client sends: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"

	// CodeMethodTypePlain means no hashing, the code_verifier is compared directly.
	CodeMethodTypePlain CodeMethodType = "plain"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// PasswordGrant authenticates the resource owner directly with
	// username and password (RFC 6749 §4.3).
	PasswordGrant GrantType = "password"

	// RefreshTokenGrant exchanges a refresh token for a new token pair,
	// rotating the refresh token in the process.
	RefreshTokenGrant GrantType = "refresh_token"
)

// TokenEndpointAuthMethod is how the client authenticates at the token endpoint.
type TokenEndpointAuthMethod string

const (
	AuthMethodClientSecretBasic TokenEndpointAuthMethod = "client_secret_basic"
	AuthMethodClientSecretPost  TokenEndpointAuthMethod = "client_secret_post"
	AuthMethodNone              TokenEndpointAuthMethod = "none"
)

// AuthorizationRequest carries the parameters of an authorization endpoint
// request (RFC 6749 §4.1.1). The HTTP layer parses the query string into this
// struct; the grant executor validates it against the registered client.
type AuthorizationRequest struct {
	ResponseType        ResponseType
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod CodeMethodType
}

// TokenRequest carries the parameters of a token endpoint request
// (RFC 6749 §4.1.3, §4.3.2, §6). Client credentials may arrive either in the
// request body or via HTTP Basic auth; the HTTP layer normalises both into
// ClientID/ClientSecret and records the method used.
type TokenRequest struct {
	GrantType    GrantType
	ClientID     string
	ClientSecret string
	AuthMethod   TokenEndpointAuthMethod

	// authorization_code grant
	Code         string
	RedirectURI  string
	CodeVerifier string

	// password grant
	Username string
	Password string

	// refresh_token grant
	RefreshToken string

	// password and refresh_token grants may narrow the scope
	Scope string
}

// RedirectDescriptor is the result of completing an authorization request:
// the registered redirect URI plus the query parameters to append to it
// (code+state on approval, error+state on denial).
type RedirectDescriptor struct {
	URI    string
	Params map[string]string
}
