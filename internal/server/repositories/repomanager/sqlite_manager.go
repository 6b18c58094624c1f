package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/formauth/internal/dbx"
	"github.com/dmitrijs2005/formauth/internal/server/migrations"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLiteRepositoryManager vends SQLite-backed repositories (modernc.org/sqlite).
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Dialect() string { return "sqlite3" }

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.Dialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, migrations.SQLiteDir)
}
