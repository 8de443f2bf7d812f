// Package credentials generates the unguessable opaque strings used for
// authorization codes, access tokens and refresh tokens.
package credentials

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
)

// DefaultEntropyBytes is the amount of CSPRNG entropy behind each credential.
// 32 bytes = 256 bits, encoded to 43 URL-safe characters.
const DefaultEntropyBytes = 32

// Generator produces cryptographically random, URL-safe opaque strings.
// The zero value is not usable; construct with New.
type Generator struct {
	entropyBytes int
	readRandom   func(b []byte) (int, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithEntropyBytes overrides the entropy length. Values below
// DefaultEntropyBytes are ignored; credentials never get weaker than the
// default.
func WithEntropyBytes(n int) Option {
	return func(g *Generator) {
		if n > DefaultEntropyBytes {
			g.entropyBytes = n
		}
	}
}

// WithRandReader overrides the random source (testing only).
func WithRandReader(read func(b []byte) (int, error)) Option {
	return func(g *Generator) {
		g.readRandom = read
	}
}

// New creates a Generator backed by crypto/rand.
func New(options ...Option) *Generator {
	g := &Generator{
		entropyBytes: DefaultEntropyBytes,
		readRandom:   rand.Read,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Generate returns a fresh URL-safe random string. Uniqueness is practically
// guaranteed by the entropy; the store layer additionally enforces uniqueness
// constraints and retries on the expected-rare collision.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, g.entropyBytes)
	if _, err := g.readRandom(buf); err != nil {
		return "", errors.Wrap(err, "[Generator.Generate] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
