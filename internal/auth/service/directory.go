package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/cryptox"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
)

// UserDirectory authenticates email and password pairs.
type UserDirectory interface {
	// Authenticate returns the matching active user or ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	IsActive(u domain.User) bool
	Lookup(ctx context.Context, userID string) (domain.User, error)
}

// PasswordDirectory checks Argon2id password hashes held in store.Users.
type PasswordDirectory struct {
	Users  store.Users
	Hasher *cryptox.PasswordHasher

	// dummyHash is verified for unknown emails so they cost as much as a
	// wrong password.
	dummyHash string
}

var _ UserDirectory = (*PasswordDirectory)(nil)

func NewPasswordDirectory(users store.Users, hasher *cryptox.PasswordHasher) (*PasswordDirectory, error) {
	secret, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &PasswordDirectory{Users: users, Hasher: hasher, dummyHash: dummy}, nil
}

func (d *PasswordDirectory) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		l.Info("login rejected", slog.String("reason", "empty_credentials"))
		return domain.User{}, ErrInvalidCredentials
	}

	u, err := d.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		_ = d.Hasher.Verify(password, d.dummyHash)
		l.Info("login rejected", slog.String("reason", "unknown_email"))
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := d.Hasher.Verify(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("login rejected", slog.String("reason", "password_mismatch"), slog.String("user_id", u.ID))
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("verify password: %w", err)
	}

	if !d.IsActive(u) {
		l.Info("login rejected", slog.String("reason", "inactive"), slog.String("user_id", u.ID))
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (d *PasswordDirectory) IsActive(u domain.User) bool { return u.Active }

func (d *PasswordDirectory) Lookup(ctx context.Context, userID string) (domain.User, error) {
	return d.Users.GetUserByID(ctx, userID)
}
