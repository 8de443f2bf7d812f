package credentials_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/credentials"
)

func TestGenerateIsURLSafe(t *testing.T) {
	g := credentials.New()

	value, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, value, 43) // 32 bytes, base64url without padding
	require.False(t, strings.ContainsAny(value, "+/= "))
}

func TestGenerateUnique(t *testing.T) {
	g := credentials.New()

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		value, err := g.Generate()
		require.NoError(t, err)
		_, dup := seen[value]
		require.False(t, dup, "duplicate credential generated")
		seen[value] = struct{}{}
	}
}

func TestEntropyNeverWeakerThanDefault(t *testing.T) {
	g := credentials.New(credentials.WithEntropyBytes(8))

	value, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, value, 43)
}

func TestGenerateRandFailure(t *testing.T) {
	g := credentials.New(credentials.WithRandReader(func(b []byte) (int, error) {
		return 0, errors.New("entropy exhausted")
	}))

	_, err := g.Generate()
	require.Error(t, err)
}
