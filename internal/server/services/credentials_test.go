package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/cryptox"
	"github.com/dmitrijs2005/formauth/internal/logging"
	"github.com/dmitrijs2005/formauth/internal/server/config"
	"github.com/dmitrijs2005/formauth/internal/server/models"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/formauth/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// countingRepo wraps a repository and counts successful inserts per username.
type countingRepo struct {
	users.Repository
	mu      sync.Mutex
	created map[string]int
}

func newCountingRepo() *countingRepo {
	return &countingRepo{Repository: users.NewMemoryRepository(), created: map[string]int{}}
}

func (r *countingRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	out, err := r.Repository.Create(ctx, u)
	if err == nil {
		r.mu.Lock()
		r.created[u.UserName]++
		r.mu.Unlock()
	}
	return out, err
}

func (r *countingRepo) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[name]
}

type failingRepo struct {
	getErr    error
	createErr error
	getOut    *models.User
}

func (f *failingRepo) Create(context.Context, *models.User) (*models.User, error) {
	return nil, f.createErr
}

func (f *failingRepo) GetUserByLogin(context.Context, string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

type failingSessions struct{ err error }

func (f failingSessions) Create(context.Context, string) (string, error) { return "", f.err }
func (f failingSessions) Lookup(context.Context, string) (string, error) { return "", f.err }
func (f failingSessions) Destroy(context.Context, string) error          { return f.err }

// spyHasher counts Verify calls.
type spyHasher struct {
	cryptox.Hasher
	verifies atomic.Int32
}

func (s *spyHasher) Verify(password, encoded string) (bool, error) {
	s.verifies.Add(1)
	return s.Hasher.Verify(password, encoded)
}

func testConfig() *config.Config {
	return &config.Config{MinPasswordLength: 6}
}

func newService(t *testing.T, repo users.Repository, sm sessions.Manager) *CredentialService {
	t.Helper()
	svc, err := NewCredentialService(repo, sm, cryptox.NewBcryptHasher(bcrypt.MinCost), nopLogger{}, testConfig())
	require.NoError(t, err)
	return svc
}

func requireFailure(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var f *Failure
	require.True(t, errors.As(err, &f), "error %v is not a *Failure", err)
	assert.Equal(t, msg, f.Message)
}

// --- Register ---

func TestRegister_EmptyFields(t *testing.T) {
	cases := []struct{ username, password, fullName string }{
		{"", "", ""},
		{"", "secret123", "Alice"},
		{"alice", "", "Alice"},
		{"alice", "secret123", ""},
		{"   ", "secret123", "Alice"},
		{"alice", " \t ", "Alice"},
		{"alice", "secret123", "\n"},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%q/%q/%q", c.username, c.password, c.fullName), func(t *testing.T) {
			repo := newCountingRepo()
			svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))

			res, err := svc.Register(context.Background(), c.username, c.password, c.fullName)
			assert.Nil(t, res)
			requireFailure(t, err, common.ErrorValidation, MsgFillAllFields)
			assert.Equal(t, 0, repo.count(strings.TrimSpace(c.username)))
		})
	}
}

func TestRegister_PasswordTooShort(t *testing.T) {
	repo := newCountingRepo()
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))

	_, err := svc.Register(context.Background(), "alice", "12345", "Alice")
	requireFailure(t, err, common.ErrorValidation, "Password must be at least 6 characters.")
	assert.Equal(t, 0, repo.count("alice"))

	// counted in runes, not bytes
	_, err = svc.Register(context.Background(), "alice", "пароль", "Alice")
	require.NoError(t, err)
}

func TestRegister_MinLengthDisabled(t *testing.T) {
	svc, err := NewCredentialService(users.NewMemoryRepository(), sessions.NewMemoryManager(time.Hour),
		cryptox.NewBcryptHasher(bcrypt.MinCost), nopLogger{}, &config.Config{MinPasswordLength: 0})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "alice", "x", "Alice")
	require.NoError(t, err)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc := newService(t, newCountingRepo(), sessions.NewMemoryManager(time.Hour))

	_, err := svc.Register(context.Background(), "alice", strings.Repeat("a", 73), "Alice")
	requireFailure(t, err, common.ErrorValidation, MsgPasswordTooLong)
}

func TestRegister_Duplicate(t *testing.T) {
	repo := newCountingRepo()
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))
	ctx := context.Background()

	res, err := svc.Register(ctx, "alice", "secret123", "Alice A")
	require.NoError(t, err)
	assert.Equal(t, MsgAccountCreated, res.Message)
	assert.Empty(t, res.Token)
	assert.Empty(t, res.Redirect)

	_, err = svc.Register(ctx, "alice", "another-pass", "Someone Else")
	requireFailure(t, err, common.ErrorConflict, MsgUsernameTaken)

	assert.Equal(t, 1, repo.count("alice"))
}

func TestRegister_TrimsUsernameAndFullName(t *testing.T) {
	repo := users.NewMemoryRepository()
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))
	ctx := context.Background()

	_, err := svc.Register(ctx, "  carol ", " pass word ", "  Carol C  ")
	require.NoError(t, err)

	u, err := repo.GetUserByLogin(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "Carol C", u.FullName)

	// the password is kept verbatim, surrounding spaces included
	_, err = svc.Authenticate(ctx, "carol", "pass word")
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = svc.Authenticate(ctx, "carol", " pass word ")
	require.NoError(t, err)
}

func TestRegister_StoreRejectsDuplicateAfterPrecheck(t *testing.T) {
	repo := &failingRepo{getErr: common.ErrorNotFound, createErr: common.ErrorAlreadyExists}
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))

	_, err := svc.Register(context.Background(), "alice", "secret123", "Alice")
	requireFailure(t, err, common.ErrorConflict, MsgUsernameTaken)
}

func TestRegister_StoreErrors(t *testing.T) {
	raw := errors.New(`pq: relation "users" does not exist`)

	t.Run("lookup", func(t *testing.T) {
		svc := newService(t, &failingRepo{getErr: raw}, sessions.NewMemoryManager(time.Hour))
		_, err := svc.Register(context.Background(), "alice", "secret123", "Alice")
		requireFailure(t, err, common.ErrorStore, MsgStoreFailure)
		assert.NotContains(t, err.Error(), "relation")
	})

	t.Run("insert", func(t *testing.T) {
		svc := newService(t, &failingRepo{getErr: common.ErrorNotFound, createErr: raw}, sessions.NewMemoryManager(time.Hour))
		_, err := svc.Register(context.Background(), "alice", "secret123", "Alice")
		requireFailure(t, err, common.ErrorStore, MsgStoreFailure)
		assert.NotContains(t, err.Error(), "relation")
	})
}

func TestRegister_HashesAreSalted(t *testing.T) {
	repo := users.NewMemoryRepository()
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))
	ctx := context.Background()

	_, err := svc.Register(ctx, "u1", "samepassword", "User One")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "u2", "samepassword", "User Two")
	require.NoError(t, err)

	u1, err := repo.GetUserByLogin(ctx, "u1")
	require.NoError(t, err)
	u2, err := repo.GetUserByLogin(ctx, "u2")
	require.NoError(t, err)

	assert.NotEqual(t, "samepassword", u1.PasswordHash)
	assert.NotContains(t, u1.PasswordHash, "samepassword")
	assert.NotEqual(t, u1.PasswordHash, u2.PasswordHash)
}

// barrierRepo lets exactly two callers pass the existence check before
// either of them inserts.
type barrierRepo struct {
	*users.MemoryRepository
	wg sync.WaitGroup
}

func (b *barrierRepo) GetUserByLogin(ctx context.Context, name string) (*models.User, error) {
	u, err := b.MemoryRepository.GetUserByLogin(ctx, name)
	b.wg.Done()
	b.wg.Wait()
	return u, err
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	repo := &barrierRepo{MemoryRepository: users.NewMemoryRepository()}
	repo.wg.Add(2)
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), "dave", "secret123", fmt.Sprintf("Dave %d", i))
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, common.ErrorConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
}

// --- Authenticate ---

func TestAuthenticate_RoundTrip(t *testing.T) {
	sm := sessions.NewMemoryManager(time.Hour)
	svc := newService(t, users.NewMemoryRepository(), sm)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob", "secret123", "Bob B")
	require.NoError(t, err)

	res, err := svc.Authenticate(ctx, "bob", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "Bob B", res.DisplayName)
	assert.Equal(t, common.DashboardPath, res.Redirect)

	name, err := sm.Lookup(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Bob B", name)

	before := sm.Len()
	_, err = svc.Authenticate(ctx, "bob", "wrongpw")
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidCredentials)
	assert.Equal(t, before, sm.Len())
}

func TestAuthenticate_UnknownUserMatchesWrongPassword(t *testing.T) {
	sm := sessions.NewMemoryManager(time.Hour)
	hasher := &spyHasher{Hasher: cryptox.NewBcryptHasher(bcrypt.MinCost)}
	svc, err := NewCredentialService(users.NewMemoryRepository(), sm, hasher, nopLogger{}, testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Register(ctx, "bob", "secret123", "Bob B")
	require.NoError(t, err)

	hasher.verifies.Store(0)
	_, unknownErr := svc.Authenticate(ctx, "nobody", "secret123")
	assert.Equal(t, int32(1), hasher.verifies.Load())

	hasher.verifies.Store(0)
	_, wrongErr := svc.Authenticate(ctx, "bob", "nope-nope")
	assert.Equal(t, int32(1), hasher.verifies.Load())

	requireFailure(t, unknownErr, common.ErrorUnauthorized, MsgInvalidCredentials)
	requireFailure(t, wrongErr, common.ErrorUnauthorized, MsgInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.Equal(t, 0, sm.Len())
}

func TestAuthenticate_EmptyFields(t *testing.T) {
	svc := newService(t, users.NewMemoryRepository(), sessions.NewMemoryManager(time.Hour))

	for _, c := range [][2]string{{"", ""}, {"bob", ""}, {"", "pw"}, {" ", "pw"}, {"bob", "  "}} {
		_, err := svc.Authenticate(context.Background(), c[0], c[1])
		requireFailure(t, err, common.ErrorValidation, MsgFillAllFields)
	}
}

func TestAuthenticate_FailureIsIdempotent(t *testing.T) {
	repo := newCountingRepo()
	sm := sessions.NewMemoryManager(time.Hour)
	svc := newService(t, repo, sm)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Authenticate(ctx, "ghost", "whatever1")
		requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidCredentials)
	}

	assert.Equal(t, 0, repo.count("ghost"))
	assert.Equal(t, 0, sm.Len())
	_, err := repo.GetUserByLogin(ctx, "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAuthenticate_MalformedStoredHash(t *testing.T) {
	repo := &failingRepo{getOut: &models.User{UserName: "bob", PasswordHash: "plaintext", FullName: "Bob"}}
	svc := newService(t, repo, sessions.NewMemoryManager(time.Hour))

	_, err := svc.Authenticate(context.Background(), "bob", "plaintext")
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidCredentials)
}

func TestAuthenticate_StoreErrors(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		svc := newService(t, &failingRepo{getErr: errors.New("connection refused")}, sessions.NewMemoryManager(time.Hour))
		_, err := svc.Authenticate(context.Background(), "bob", "secret123")
		requireFailure(t, err, common.ErrorStore, MsgStoreFailure)
	})

	t.Run("session", func(t *testing.T) {
		repo := users.NewMemoryRepository()
		setup := newService(t, repo, sessions.NewMemoryManager(time.Hour))
		_, err := setup.Register(context.Background(), "bob", "secret123", "Bob B")
		require.NoError(t, err)

		svc := newService(t, repo, failingSessions{err: errors.New("redis down")})
		_, err = svc.Authenticate(context.Background(), "bob", "secret123")
		requireFailure(t, err, common.ErrorStore, MsgStoreFailure)
	})
}

// --- Handle, CurrentUser, Logout ---

func TestHandle_Dispatch(t *testing.T) {
	sm := sessions.NewMemoryManager(time.Hour)
	svc := newService(t, users.NewMemoryRepository(), sm)
	ctx := context.Background()

	res, err := svc.Handle(ctx, FormRequest{Intent: IntentRegister, Username: "bob", Password: "secret123", FullName: "Bob B"})
	require.NoError(t, err)
	assert.Equal(t, MsgAccountCreated, res.Message)

	res, err = svc.Handle(ctx, FormRequest{Intent: IntentAuthenticate, Username: "bob", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Handle(ctx, FormRequest{Intent: "delete", Username: "bob"})
	requireFailure(t, err, common.ErrorValidation, MsgUnknownAction)
}

func TestCurrentUserAndLogout(t *testing.T) {
	sm := sessions.NewMemoryManager(time.Hour)
	svc := newService(t, users.NewMemoryRepository(), sm)
	ctx := context.Background()

	_, err := svc.Register(ctx, "bob", "secret123", "Bob B")
	require.NoError(t, err)
	res, err := svc.Authenticate(ctx, "bob", "secret123")
	require.NoError(t, err)

	name, err := svc.CurrentUser(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "Bob B", name)

	require.NoError(t, svc.Logout(ctx, res.Token))
	require.NoError(t, svc.Logout(ctx, res.Token))
	require.NoError(t, svc.Logout(ctx, ""))

	_, err = svc.CurrentUser(ctx, res.Token)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = svc.CurrentUser(ctx, "")
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestCurrentUserAndLogout_BackendErrors(t *testing.T) {
	svc := newService(t, users.NewMemoryRepository(), failingSessions{err: errors.New("boom")})
	ctx := context.Background()

	_, err := svc.CurrentUser(ctx, "tok")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	err = svc.Logout(ctx, "tok")
	require.ErrorIs(t, err, common.ErrorStore)
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Kind: common.ErrorConflict, Message: MsgUsernameTaken}
	assert.Equal(t, "conflict: Username already exists.", f.Error())
	assert.ErrorIs(t, f, common.ErrorConflict)
}
