package sessions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/dbx"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteManager(t *testing.T, ttl time.Duration) (*SQLManager, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := &repomanager.SQLiteRepositoryManager{}
	require.NoError(t, rm.RunMigrations(ctx, db))

	return NewSQLManager(db, rm.Sessions, ttl), db
}

func countSessions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	return n
}

func TestSQLManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m, db := newSQLiteManager(t, time.Hour)

	token, err := m.Create(ctx, "Bob B")
	require.NoError(t, err)
	assert.Equal(t, 1, countSessions(t, db))

	name, err := m.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Bob B", name)

	require.NoError(t, m.Destroy(ctx, token))
	require.NoError(t, m.Destroy(ctx, token))
	require.NoError(t, m.Destroy(ctx, ""))

	_, err = m.Lookup(ctx, token)
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = m.Lookup(ctx, "")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLManager_ExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m, db := newSQLiteManager(t, time.Hour)
	m.clock = fc.now

	first, err := m.Create(ctx, "first")
	require.NoError(t, err)

	fc.advance(2 * time.Hour)
	_, err = m.Lookup(ctx, first)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, 0, countSessions(t, db))

	_, err = m.Create(ctx, "second")
	require.NoError(t, err)
	fc.advance(2 * time.Hour)
	// creating a new session purges the expired one
	_, err = m.Create(ctx, "third")
	require.NoError(t, err)
	assert.Equal(t, 1, countSessions(t, db))

	fc.advance(2 * time.Hour)
	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, countSessions(t, db))
}

func TestSQLManager_CreateRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rm := &repomanager.PostgresRepositoryManager{}
	m := NewSQLManager(db, rm.Sessions, time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sessions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO sessions`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = m.Create(context.Background(), "Bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}
