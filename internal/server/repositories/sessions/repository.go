// Package sessions declares the repository contract for server-side login
// sessions kept in the SQL database, with PostgreSQL and SQLite flavours.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/formauth/internal/server/models"
)

// Repository defines operations for storing, retrieving and revoking sessions.
type Repository interface {
	// Create stores a new session row.
	Create(ctx context.Context, session *models.Session) error

	// Find looks a session up by its opaque token. Absent tokens yield
	// common.ErrorNotFound; expiry is left to the caller.
	Find(ctx context.Context, token string) (*models.Session, error)

	// Delete removes a session. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes every session whose expiry is at or before now
	// and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
