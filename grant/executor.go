// Package grant is the per-grant-type execution engine: it decides, for each
// authorization and token request, whether a credential may be issued, what
// it encodes and how long it lives. Every failure surfaces as a tagged
// *oauth2.Error; nothing propagates past this boundary as an unhandled fault.
package grant

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/authcode"
	"github.com/wheats/oauth2-server/clients"
	"github.com/wheats/oauth2-server/oauth2"
	"github.com/wheats/oauth2-server/token"
	"github.com/wheats/oauth2-server/users"
)

// Repos holds the repository dependencies of the Executor.
type Repos struct {
	Users   users.UserRepo
	Clients clients.Repo
}

// Executor orchestrates the client registry, scope model, authorization code
// store and token store into grant decisions.
type Executor struct {
	repos         Repos
	codes         *authcode.Manager
	tokens        *token.Manager
	consentPolicy ConsentPolicy
	nowFunc       func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithConsentPolicy selects the consent policy; the default is PolicyPrompt.
func WithConsentPolicy(policy ConsentPolicy) ExecutorOption {
	return func(e *Executor) {
		if policy == PolicyAuto || policy == PolicyPrompt {
			e.consentPolicy = policy
		}
	}
}

// WithNowFunc sets the clock source (primarily for testing).
func WithNowFunc(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.nowFunc = now
	}
}

// NewExecutor creates the grant executor with its required dependencies.
func NewExecutor(repos Repos, codes *authcode.Manager, tokens *token.Manager, options ...ExecutorOption) (*Executor, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewExecutor] Users repo is required")
	}
	if repos.Clients == nil {
		return nil, errors.New("[NewExecutor] Clients repo is required")
	}
	if codes == nil {
		return nil, errors.New("[NewExecutor] authorization code manager is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewExecutor] token manager is required")
	}

	e := &Executor{
		repos:         repos,
		codes:         codes,
		tokens:        tokens,
		consentPolicy: PolicyPrompt,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// ConsentRequest is a validated authorization request, ready for the end
// user's consent decision. GrantedScope is what an approval would put on the
// issued code.
type ConsentRequest struct {
	Client       *clients.Client
	Request      oauth2.AuthorizationRequest
	GrantedScope string
}

// BeginAuthorization validates an authorization endpoint request against the
// registered client. Failures are tagged per RFC 6749: unknown client is
// invalid_client, an unregistered redirect URI is invalid_request (never
// redirected to), a disallowed response type is unauthorized_client and a
// scope with no overlap is invalid_scope.
func (e *Executor) BeginAuthorization(ctx context.Context, req oauth2.AuthorizationRequest) (*ConsentRequest, error) {
	client, err := e.repos.Clients.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return nil, oauth2.ErrInvalidClient
		}
		return nil, errors.Wrap(err, "[Executor.BeginAuthorization] client lookup")
	}

	// The redirect URI is validated before anything is ever sent to it.
	if !client.CheckRedirectURI(req.RedirectURI) {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "redirect_uri is not registered for this client")
	}

	if req.ResponseType != oauth2.CodeResponseType {
		return nil, oauth2.ErrUnsupportedResponseType
	}
	if !client.CheckResponseType(req.ResponseType) {
		return nil, oauth2.ErrUnauthorizedClient
	}

	granted := client.AllowedScope(req.Scope)
	if req.Scope != "" && granted == "" {
		return nil, oauth2.ErrInvalidScope
	}

	if err := validatePKCE(client, req.CodeChallenge, req.CodeChallengeMethod); err != nil {
		return nil, err
	}

	return &ConsentRequest{
		Client:       client,
		Request:      req,
		GrantedScope: granted,
	}, nil
}

// CompleteAuthorization turns the end user's consent decision into a
// redirect descriptor. grantUser nil means the user denied the request;
// approval issues an authorization code bound to the user. The state value,
// if present, is always echoed back.
func (e *Executor) CompleteAuthorization(ctx context.Context, consent *ConsentRequest, grantUser *users.User) (*oauth2.RedirectDescriptor, error) {
	redirect := &oauth2.RedirectDescriptor{
		URI:    consent.Request.RedirectURI,
		Params: map[string]string{},
	}
	if consent.Request.State != "" {
		redirect.Params["state"] = consent.Request.State
	}

	if grantUser == nil {
		redirect.Params["error"] = string(oauth2.ErrCodeAccessDenied)
		return redirect, nil
	}

	var pkce *authcode.PKCE
	if consent.Request.CodeChallenge != "" {
		pkce = &authcode.PKCE{
			Challenge: consent.Request.CodeChallenge,
			Method:    consent.Request.CodeChallengeMethod,
		}
	}

	code, err := e.codes.Issue(ctx, consent.Client, grantUser, consent.Request.RedirectURI, consent.Request.Scope, pkce)
	if err != nil {
		return nil, errors.Wrap(err, "[Executor.CompleteAuthorization] issue code")
	}

	redirect.Params["code"] = code.Code
	return redirect, nil
}

// IssueToken executes a token endpoint request. The response is an RFC 6749
// §5.1 token response or a tagged OAuth error; invalid user credentials and
// invalid grants are indistinguishable from each other on the wire.
func (e *Executor) IssueToken(ctx context.Context, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	client, err := e.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	if !client.CheckGrantType(req.GrantType) {
		return nil, oauth2.ErrUnauthorizedClient
	}

	switch req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		return e.authorizationCodeGrant(ctx, client, req)
	case oauth2.PasswordGrant:
		return e.passwordGrant(ctx, client, req)
	case oauth2.RefreshTokenGrant:
		return e.refreshTokenGrant(ctx, client, req)
	default:
		return nil, oauth2.ErrUnsupportedGrantType
	}
}

// RevokeToken revokes an access or refresh token on behalf of an
// authenticated client. Idempotent: revoking an unknown token succeeds
// (RFC 7009 §2.2).
func (e *Executor) RevokeToken(ctx context.Context, req RevocationRequest) error {
	if _, err := e.authenticateClient(ctx, oauth2.TokenRequest{
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		AuthMethod:   req.AuthMethod,
	}); err != nil {
		return err
	}

	if err := e.tokens.Revoke(ctx, req.Token, req.TokenTypeHint); err != nil {
		return errors.Wrap(err, "[Executor.RevokeToken] revoke")
	}
	return nil
}

// RevocationRequest carries an RFC 7009 revocation call.
type RevocationRequest struct {
	Token         string
	TokenTypeHint string
	ClientID      string
	ClientSecret  string
	AuthMethod    oauth2.TokenEndpointAuthMethod
}

func (e *Executor) authenticateClient(ctx context.Context, req oauth2.TokenRequest) (*clients.Client, error) {
	if req.ClientID == "" {
		return nil, oauth2.ErrInvalidClient
	}
	client, err := e.repos.Clients.Get(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			return nil, oauth2.ErrInvalidClient
		}
		return nil, errors.Wrap(err, "[Executor.authenticateClient] client lookup")
	}
	if !client.Authenticate(req.ClientSecret, req.AuthMethod) {
		return nil, oauth2.ErrInvalidClient
	}
	return client, nil
}

func (e *Executor) authorizationCodeGrant(ctx context.Context, client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.Code == "" {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "code is required")
	}

	code, err := e.codes.Redeem(ctx, req.Code, client, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, err
	}

	user, err := e.repos.Users.GetByID(ctx, code.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, oauth2.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "[Executor.authorizationCodeGrant] user lookup")
	}

	issued, err := e.tokens.Issue(ctx, client, user, code.Scope, client.CheckGrantType(oauth2.RefreshTokenGrant))
	if err != nil {
		return nil, errors.Wrap(err, "[Executor.authorizationCodeGrant] issue token")
	}
	return e.tokenResponse(issued), nil
}

func (e *Executor) passwordGrant(ctx context.Context, client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "username and password are required")
	}

	user, err := e.repos.Users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			// Unknown user and wrong password are indistinguishable.
			return nil, oauth2.ErrInvalidGrant
		}
		return nil, errors.Wrap(err, "[Executor.passwordGrant] user lookup")
	}
	if !users.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, oauth2.ErrInvalidGrant
	}

	granted := client.AllowedScope(req.Scope)
	if req.Scope != "" && granted == "" {
		return nil, oauth2.ErrInvalidScope
	}

	issued, err := e.tokens.Issue(ctx, client, user, granted, client.CheckGrantType(oauth2.RefreshTokenGrant))
	if err != nil {
		return nil, errors.Wrap(err, "[Executor.passwordGrant] issue token")
	}
	return e.tokenResponse(issued), nil
}

func (e *Executor) refreshTokenGrant(ctx context.Context, client *clients.Client, req oauth2.TokenRequest) (*oauth2.TokenResponse, error) {
	old, err := e.tokens.LookupRefresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}

	// A refresh token is only redeemable by the client it was issued to.
	if old.ClientID != client.ID {
		return nil, oauth2.ErrInvalidGrant
	}

	rotated, err := e.tokens.Rotate(ctx, old, req.Scope)
	if err != nil {
		return nil, err
	}
	return e.tokenResponse(rotated), nil
}

func (e *Executor) tokenResponse(t *token.Token) *oauth2.TokenResponse {
	return &oauth2.TokenResponse{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    t.ExpiresIn(e.nowFunc()),
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
	}
}

func validatePKCE(client *clients.Client, challenge string, method oauth2.CodeMethodType) error {
	if challenge == "" {
		if client.IsPublic() {
			// Public clients cannot hold a secret; PKCE is their only
			// protection against code interception.
			return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "PKCE is required for public clients")
		}
		return nil
	}
	if method != oauth2.CodeMethodTypeS256 && method != oauth2.CodeMethodTypePlain {
		return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "code_challenge_method must be 'S256' or 'plain'")
	}
	if len(challenge) < 43 || len(challenge) > 128 {
		return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "code_challenge length must be between 43 and 128 characters")
	}
	return nil
}
