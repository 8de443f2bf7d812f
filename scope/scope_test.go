package scope_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wheats/oauth2-server/scope"
)

func TestIntersect(t *testing.T) {
	tests := []struct {
		name      string
		allowed   string
		requested string
		want      string
	}{
		{name: "full overlap", allowed: "profile customer store", requested: "profile store", want: "profile store"},
		{name: "requested exceeds allowed", allowed: "profile store", requested: "profile store admin", want: "profile store"},
		{name: "no overlap", allowed: "profile", requested: "admin", want: ""},
		{name: "empty requested", allowed: "profile store", requested: "", want: ""},
		{name: "empty allowed", allowed: "", requested: "profile", want: ""},
		{name: "duplicates collapse", allowed: "profile store", requested: "profile profile store", want: "profile store"},
		{name: "order is canonical", allowed: "store profile", requested: "store profile", want: "profile store"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, scope.Intersect(tc.allowed, tc.requested))
		})
	}
}

func TestIsSubset(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "proper subset", a: "profile", b: "profile store", want: true},
		{name: "equal sets", a: "profile store", b: "store profile", want: true},
		{name: "not a subset", a: "profile admin", b: "profile store", want: false},
		{name: "empty is subset of anything", a: "", b: "profile", want: true},
		{name: "empty is subset of empty", a: "", b: "", want: true},
		{name: "nothing but empty is subset of empty", a: "profile", b: "", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, scope.IsSubset(tc.a, tc.b))
		})
	}
}

func TestCanonical(t *testing.T) {
	require.Equal(t, "customer profile store", scope.Canonical("store  profile customer profile"))
	require.Equal(t, "", scope.Canonical("   "))
}
