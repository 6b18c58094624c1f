package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/server/models"
)

// MemoryManager keeps sessions in process memory. Sessions do not survive a
// restart and are not shared between instances.
type MemoryManager struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	ttl      time.Duration
	clock    clock
}

func NewMemoryManager(ttl time.Duration) *MemoryManager {
	return &MemoryManager{sessions: make(map[string]models.Session), ttl: ttl}
}

func (m *MemoryManager) Create(ctx context.Context, displayName string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := m.clock.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = models.Session{
		Token:       token,
		DisplayName: displayName,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
	}
	return token, nil
}

func (m *MemoryManager) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorNotFound
	}

	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return "", common.ErrorNotFound
	}
	if s.Expired(m.clock.now()) {
		_ = m.Destroy(ctx, token)
		return "", common.ErrorNotFound
	}
	return s.DisplayName, nil
}

func (m *MemoryManager) Destroy(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemoryManager) Sweep(ctx context.Context) (int64, error) {
	now := m.clock.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
