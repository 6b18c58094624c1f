package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/dbx"
	"github.com/dmitrijs2005/formauth/internal/server/models"
	sessionrepo "github.com/dmitrijs2005/formauth/internal/server/repositories/sessions"
)

// RepositoryFactory binds a session repository to a connection or transaction.
type RepositoryFactory func(db dbx.DBTX) sessionrepo.Repository

// SQLManager stores sessions in the sessions table of the main database.
type SQLManager struct {
	db    *sql.DB
	repo  RepositoryFactory
	ttl   time.Duration
	clock clock
}

func NewSQLManager(db *sql.DB, repo RepositoryFactory, ttl time.Duration) *SQLManager {
	return &SQLManager{db: db, repo: repo, ttl: ttl}
}

// Create purges expired rows and inserts the new session in one transaction.
func (m *SQLManager) Create(ctx context.Context, displayName string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := m.clock.now()
	s := &models.Session{
		Token:       token,
		DisplayName: displayName,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
	}

	err = dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		r := m.repo(tx)
		if _, err := r.DeleteExpired(ctx, now); err != nil {
			return err
		}
		return r.Create(ctx, s)
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

func (m *SQLManager) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorNotFound
	}

	s, err := m.repo(m.db).Find(ctx, token)
	if err != nil {
		return "", err
	}

	if s.Expired(m.clock.now()) {
		if err := m.repo(m.db).Delete(ctx, token); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return "", err
		}
		return "", common.ErrorNotFound
	}

	return s.DisplayName, nil
}

func (m *SQLManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.repo(m.db).Delete(ctx, token)
}

func (m *SQLManager) Sweep(ctx context.Context) (int64, error) {
	return m.repo(m.db).DeleteExpired(ctx, m.clock.now())
}
