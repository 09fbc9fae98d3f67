package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/cryptox"
	"github.com/aussiebroadwan/otpauth/pkg/idx"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
)

var ErrBootstrapIncomplete = errors.New("bootstrap user needs an email and a password")

// BootstrapUser is the account seeded on first start.
type BootstrapUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type BootstrapService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
	Clock  clock.Clocker
}

// EnsureUser creates req as an active user unless its email already
// exists. It reports whether a user was created.
func (s *BootstrapService) EnsureUser(ctx context.Context, req BootstrapUser) (bool, error) {
	l := slogx.FromContext(ctx)

	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return false, ErrBootstrapIncomplete
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}

	now := s.Clock.Now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created := false
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Users().GetUserByEmail(ctx, email)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		l.Error("failed to create bootstrap user", slog.Any("error", err))
		return false, fmt.Errorf("create bootstrap user: %w", err)
	}

	if created {
		l.Info("created bootstrap user", slog.String("user_id", u.ID))
	} else {
		l.Debug("bootstrap user already exists")
	}
	return created, nil
}
