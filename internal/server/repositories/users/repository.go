// Package users declares the user store contract and its PostgreSQL, SQLite
// and in-memory implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/formauth/internal/server/models"
)

// Repository persists accounts. Implementations enforce username uniqueness
// themselves and report a violation as common.ErrorAlreadyExists, so a
// concurrent duplicate registration can never produce two rows.
type Repository interface {
	// Create stores user and returns it with ID and CreatedAt filled in.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin returns the user with exactly this username, or
	// common.ErrorNotFound.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
