// Package services contains server-side business logic. This file implements
// CredentialService, which registers accounts, verifies credentials and
// issues sessions for the login form.
package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/formauth/internal/common"
	"github.com/dmitrijs2005/formauth/internal/cryptox"
	"github.com/dmitrijs2005/formauth/internal/logging"
	"github.com/dmitrijs2005/formauth/internal/server/config"
	"github.com/dmitrijs2005/formauth/internal/server/models"
	"github.com/dmitrijs2005/formauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/formauth/internal/server/sessions"
)

// CredentialService handles the register and authenticate intents of the
// login form. It holds no mutable state of its own; username uniqueness is
// ultimately guaranteed by the user store.
type CredentialService struct {
	users             users.Repository
	sessions          sessions.Manager
	hasher            cryptox.Hasher
	logger            logging.Logger
	minPasswordLength int

	// dummyHash is verified against when the username is unknown so both
	// rejection paths cost one hash verification.
	dummyHash string
}

// NewCredentialService wires the service to its collaborators.
func NewCredentialService(u users.Repository, s sessions.Manager, h cryptox.Hasher, l logging.Logger, cfg *config.Config) (*CredentialService, error) {
	dummy, err := h.Hash(hex.EncodeToString(common.GenerateRandByteArray(16)))
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy hash: %w", err)
	}

	return &CredentialService{
		users:             u,
		sessions:          s,
		hasher:            h,
		logger:            l.With("module", "credentials"),
		minPasswordLength: cfg.MinPasswordLength,
		dummyHash:         dummy,
	}, nil
}

// Handle dispatches req on its intent.
func (s *CredentialService) Handle(ctx context.Context, req FormRequest) (*Result, error) {
	switch req.Intent {
	case IntentRegister:
		return s.Register(ctx, req.Username, req.Password, req.FullName)
	case IntentAuthenticate:
		return s.Authenticate(ctx, req.Username, req.Password)
	default:
		return nil, fail(common.ErrorValidation, MsgUnknownAction)
	}
}

// Register creates an account. Username and full name are stored trimmed;
// the password is hashed exactly as submitted. No session is created.
func (s *CredentialService) Register(ctx context.Context, username, password, fullName string) (*Result, error) {
	username = strings.TrimSpace(username)
	fullName = strings.TrimSpace(fullName)

	if username == "" || strings.TrimSpace(password) == "" || fullName == "" {
		return nil, fail(common.ErrorValidation, MsgFillAllFields)
	}

	if s.minPasswordLength > 0 && utf8.RuneCountInString(password) < s.minPasswordLength {
		return nil, fail(common.ErrorValidation, fmt.Sprintf(msgPasswordTooShort, s.minPasswordLength))
	}

	_, err := s.users.GetUserByLogin(ctx, username)
	switch {
	case err == nil:
		return nil, fail(common.ErrorConflict, MsgUsernameTaken)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, s.storeFailure(ctx, "user lookup failed", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return nil, fail(common.ErrorValidation, MsgPasswordTooLong)
		}
		s.logger.Error(ctx, "password hashing failed", "error", err)
		return nil, fail(common.ErrorStore, MsgStoreFailure)
	}

	_, err = s.users.Create(ctx, &models.User{UserName: username, PasswordHash: hash, FullName: fullName})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fail(common.ErrorConflict, MsgUsernameTaken)
		}
		return nil, s.storeFailure(ctx, "user insert failed", err)
	}

	s.logger.Info(ctx, "user registered", "username", username)
	return &Result{Message: MsgAccountCreated}, nil
}

// Authenticate verifies the credentials and opens a session bound to the
// user's full name. Unknown usernames and wrong passwords are reported
// identically.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (*Result, error) {
	username = strings.TrimSpace(username)

	if username == "" || strings.TrimSpace(password) == "" {
		return nil, fail(common.ErrorValidation, MsgFillAllFields)
	}

	user, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash)
			s.logger.Debug(ctx, "authentication rejected", "username", username)
			return nil, fail(common.ErrorUnauthorized, MsgInvalidCredentials)
		}
		return nil, s.storeFailure(ctx, "user lookup failed", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		// a hash this service cannot read never authenticates
		s.logger.Warn(ctx, "stored hash unreadable", "username", username, "error", err)
	}
	if !ok {
		s.logger.Debug(ctx, "authentication rejected", "username", username)
		return nil, fail(common.ErrorUnauthorized, MsgInvalidCredentials)
	}

	token, err := s.sessions.Create(ctx, user.FullName)
	if err != nil {
		return nil, s.storeFailure(ctx, "session create failed", err)
	}

	s.logger.Info(ctx, "user authenticated", "username", username)
	return &Result{Token: token, DisplayName: user.FullName, Redirect: common.DashboardPath}, nil
}

// CurrentUser resolves a session token to the display name it was issued for.
func (s *CredentialService) CurrentUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrorUnauthorized
	}

	name, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "session lookup failed", "error", err)
		}
		return "", common.ErrorUnauthorized
	}
	return name, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (s *CredentialService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, token); err != nil {
		s.logger.Error(ctx, "session destroy failed", "error", err)
		return common.ErrorStore
	}
	return nil
}

func (s *CredentialService) storeFailure(ctx context.Context, msg string, err error) *Failure {
	s.logger.Error(ctx, msg, "error", err)
	return fail(common.ErrorStore, MsgStoreFailure)
}
