package oauth2_test

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/oauth2"
)

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err  *oauth2.Error
		want int
	}{
		{oauth2.ErrInvalidRequest, http.StatusBadRequest},
		{oauth2.ErrInvalidClient, http.StatusUnauthorized},
		{oauth2.ErrInvalidGrant, http.StatusBadRequest},
		{oauth2.ErrInvalidScope, http.StatusBadRequest},
		{oauth2.ErrUnsupportedGrantType, http.StatusBadRequest},
		{oauth2.ErrInvalidToken, http.StatusUnauthorized},
		{oauth2.ErrInsufficientScope, http.StatusForbidden},
		{oauth2.ErrAccessDenied, http.StatusForbidden},
		{oauth2.ErrServerError, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, tc.err.StatusCode(), string(tc.err.Code))
	}
}

func TestAsErrorUnwrapsWrappedErrors(t *testing.T) {
	wrapped := errors.Wrap(oauth2.ErrInvalidGrant, "redeeming code")
	require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(wrapped).Code)
}

func TestAsErrorMapsUnknownErrorsToServerError(t *testing.T) {
	oe := oauth2.AsError(errors.New("database on fire"))
	require.Equal(t, oauth2.ErrCodeServerError, oe.Code)
	require.Equal(t, http.StatusInternalServerError, oe.StatusCode())
}
