package grant

import (
	"context"

	"github.com/pkg/errors"

	"github.com/wheats/oauth2-server/users"
)

// ConsentPolicy decides when the consent page can be skipped. The source
// deployments diverged into near-duplicate server variants over this; here it
// is a single configuration switch.
type ConsentPolicy string

const (
	// PolicyPrompt always shows the consent page.
	PolicyPrompt ConsentPolicy = "prompt"

	// PolicyAuto skips the consent page when an unexpired, unrevoked token
	// for the same client+user already covers the requested scope.
	PolicyAuto ConsentPolicy = "auto"
)

// ShouldAutoApprove reports whether the consent page may be skipped for this
// user under the configured policy. It never skips for a nil user.
func (e *Executor) ShouldAutoApprove(ctx context.Context, consent *ConsentRequest, user *users.User) (bool, error) {
	if e.consentPolicy != PolicyAuto || user == nil {
		return false, nil
	}
	covered, err := e.tokens.HasActiveTokenCovering(ctx, user.ID, consent.Client.ID, consent.GrantedScope)
	if err != nil {
		return false, errors.Wrap(err, "[Executor.ShouldAutoApprove] active token lookup")
	}
	return covered, nil
}
