package users

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{UserName: "bob", PasswordHash: "h", FullName: "Bob"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := repo.GetUserByLogin(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// returned copies do not alias the stored record
	got.FullName = "changed"
	again, err := repo.GetUserByLogin(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", again.FullName)

	_, err = repo.GetUserByLogin(ctx, "alice")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_ConcurrentCreateSameUsername(t *testing.T) {
	repo := NewMemoryRepository()

	const n = 16
	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), &models.User{UserName: "bob", PasswordHash: "h", FullName: "Bob"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, common.ErrorAlreadyExists):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), dup.Load())
}

func TestMemoryRepository_CanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Create(ctx, &models.User{UserName: "bob"})
	require.ErrorIs(t, err, context.Canceled)
	_, err = repo.GetUserByLogin(ctx, "bob")
	require.ErrorIs(t, err, context.Canceled)
}
