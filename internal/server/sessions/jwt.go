package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/server/auth"
	"github.com/google/uuid"
)

// JWTManager issues self-contained signed tokens; nothing is stored on the
// server. Destroy cannot revoke a token before it expires, so logout relies
// on the client dropping the cookie.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(secret []byte, ttl time.Duration) *JWTManager {
	return &JWTManager{secret: secret, ttl: ttl}
}

func (m *JWTManager) Create(ctx context.Context, displayName string) (string, error) {
	return auth.GenerateToken(uuid.NewString(), displayName, m.secret, m.ttl)
}

func (m *JWTManager) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorNotFound
	}

	name, err := auth.GetDisplayNameFromToken(token, m.secret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) || errors.Is(err, common.ErrInvalidToken) {
			return "", common.ErrorNotFound
		}
		return "", err
	}
	return name, nil
}

func (m *JWTManager) Destroy(ctx context.Context, token string) error {
	return nil
}
