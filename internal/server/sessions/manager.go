// Package sessions implements server-side login sessions. A session maps an
// opaque token, held by the browser in a cookie, to the display name of the
// authenticated user. Sessions have a fixed lifetime counted from login.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
)

// tokenBytes is the amount of randomness in a stateful session token.
const tokenBytes = 32

// Manager creates, resolves and destroys sessions.
type Manager interface {
	// Create starts a session for displayName and returns its token.
	Create(ctx context.Context, displayName string) (string, error)

	// Lookup returns the display name bound to token. Unknown, expired and
	// empty tokens yield common.ErrorNotFound.
	Lookup(ctx context.Context, token string) (string, error)

	// Destroy ends the session. Unknown tokens are not an error.
	Destroy(ctx context.Context, token string) error
}

// Sweeper is implemented by managers that must purge expired sessions
// themselves.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

func newToken() (string, error) {
	return common.MakeRandHexString(tokenBytes)
}

// clock is a seam for tests.
type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
