package oauth2

import (
	"errors"
	"fmt"
)

// ErrorCode is an RFC 6749 §5.2 / RFC 6750 §3.1 error identifier. These are
// the only error codes that ever cross the wire; internal failures are mapped
// onto them before leaving the grant executor or the resource protector.
type ErrorCode string

const (
	ErrCodeInvalidRequest          ErrorCode = "invalid_request"
	ErrCodeInvalidClient           ErrorCode = "invalid_client"
	ErrCodeInvalidGrant            ErrorCode = "invalid_grant"
	ErrCodeUnauthorizedClient      ErrorCode = "unauthorized_client"
	ErrCodeAccessDenied            ErrorCode = "access_denied"
	ErrCodeUnsupportedResponseType ErrorCode = "unsupported_response_type"
	ErrCodeUnsupportedGrantType    ErrorCode = "unsupported_grant_type"
	ErrCodeInvalidScope            ErrorCode = "invalid_scope"
	ErrCodeServerError             ErrorCode = "server_error"

	// Bearer token errors (RFC 6750)
	ErrCodeInvalidToken      ErrorCode = "invalid_token"
	ErrCodeInsufficientScope ErrorCode = "insufficient_scope"
)

// Error is the structured OAuth 2.0 error returned to the HTTP layer. It
// deliberately carries no internal detail: token not found, token expired and
// token revoked all collapse to the same wire shape.
type Error struct {
	Code        ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates an OAuth error with a human-readable description.
func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

var (
	ErrInvalidRequest          = NewError(ErrCodeInvalidRequest, "the request is missing a required parameter or is otherwise malformed")
	ErrInvalidClient           = NewError(ErrCodeInvalidClient, "client authentication failed")
	ErrInvalidGrant            = NewError(ErrCodeInvalidGrant, "the provided authorization grant is invalid, expired or revoked")
	ErrUnauthorizedClient      = NewError(ErrCodeUnauthorizedClient, "the client is not authorized to use this grant type")
	ErrAccessDenied            = NewError(ErrCodeAccessDenied, "the resource owner denied the request")
	ErrUnsupportedResponseType = NewError(ErrCodeUnsupportedResponseType, "the authorization server does not support this response type")
	ErrUnsupportedGrantType    = NewError(ErrCodeUnsupportedGrantType, "the authorization server does not support this grant type")
	ErrInvalidScope            = NewError(ErrCodeInvalidScope, "the requested scope is invalid or exceeds what was granted")
	ErrServerError             = NewError(ErrCodeServerError, "the authorization server encountered an unexpected condition")
	ErrInvalidToken            = NewError(ErrCodeInvalidToken, "the access token provided is expired, revoked, malformed, or invalid for other reasons")
	ErrInsufficientScope       = NewError(ErrCodeInsufficientScope, "the request requires higher privileges than provided by the access token")
)

// AsError coerces any error into an *Error for the wire. Non-OAuth errors
// become server_error so that internal detail never leaks to the caller.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return ErrServerError
}

// StatusCode returns the HTTP status the error maps to (RFC 6749 §5.2,
// RFC 6750 §3.1).
func (e *Error) StatusCode() int {
	switch e.Code {
	case ErrCodeInvalidClient:
		return 401
	case ErrCodeInvalidToken:
		return 401
	case ErrCodeInsufficientScope:
		return 403
	case ErrCodeAccessDenied:
		return 403
	case ErrCodeServerError:
		return 500
	default:
		return 400
	}
}
