package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/notify"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
	"github.com/aussiebroadwan/otpauth/pkg/slogx"
)

const DefaultNotifyTimeout = 10 * time.Second

// LoginResult is handed back after the password step. It never carries
// the one-time code.
type LoginResult struct {
	PendingToken domain.IssuedToken
	UserID       string
}

// SessionResult is handed back after a successful code check.
type SessionResult struct {
	SessionToken domain.IssuedToken
	User         domain.User
}

// AuthService runs the two-step login: password, then a one-time code
// delivered out of band. It holds no per-login state of its own; everything
// lives in the pending token and the ChallengeStore.
type AuthService struct {
	Directory  UserDirectory
	Issuer     CredentialIssuer
	Challenges *ChallengeStore
	Notifier   notify.Notifier
	Clock      clock.Clocker

	PendingTTL    time.Duration
	SessionTTL    time.Duration
	NotifyTimeout time.Duration
}

// Login checks the password, then opens a challenge and sends its code.
//
// A delivery failure fails the call with ErrNotificationFailed, but the
// challenge and the pending token stay valid until they expire.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	// 1. Password
	u, err := s.Directory.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	l = l.With(slog.String("user_id", u.ID))

	// 2. Pending token
	pending, err := s.Issuer.IssuePending(ctx, u, s.pendingTTL())
	if err != nil {
		l.Error("failed to issue pending token", slog.Any("error", err))
		return LoginResult{}, fmt.Errorf("issue pending token: %w", err)
	}

	// 3. Challenge, committed before anything is returned
	c, err := s.Challenges.Create(ctx, u.ID)
	if err != nil {
		l.Error("failed to create challenge", slog.Any("error", err))
		return LoginResult{}, err
	}

	// 4. Delivery, outside any store lock
	nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout())
	defer cancel()
	if err := s.Notifier.Deliver(nctx, u.Email, c.Code); err != nil {
		l.Warn("otp delivery failed", slog.String("challenge_id", c.ID), slog.Any("error", err))
		return LoginResult{}, fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	l.Info("otp challenge issued",
		slog.String("challenge_id", c.ID),
		slog.Time("expires_at", c.ExpiresAt),
	)
	return LoginResult{PendingToken: pending, UserID: u.ID}, nil
}

// VerifyOTP checks code against the challenge gated by pendingToken and, on
// a match, issues a session token. Each code succeeds at most once.
//
// The mismatch that uses up the last attempt fails with ErrAttemptsExceeded
// rather than ErrInvalidCode, and the challenge is gone afterwards.
func (s *AuthService) VerifyOTP(ctx context.Context, pendingToken, code string) (SessionResult, error) {
	l := slogx.FromContext(ctx)

	// 1-2. Pending token and owner
	owner, err := s.Issuer.ResolvePending(ctx, pendingToken)
	if err != nil {
		l.Info("otp verification rejected", slog.String("reason", "invalid_token"), slog.Any("error", err))
		return SessionResult{}, err
	}
	l = l.With(slog.String("user_id", owner))

	// 3. Current challenge
	c, err := s.Challenges.Get(ctx, owner)
	if errors.Is(err, store.ErrNotFound) {
		l.Info("otp verification rejected", slog.String("reason", "challenge_not_found"))
		return SessionResult{}, ErrChallengeNotFound
	}
	if err != nil {
		return SessionResult{}, fmt.Errorf("get challenge: %w", err)
	}
	l = l.With(slog.String("challenge_id", c.ID))

	// 4. Expiry
	if c.ExpiredAt(s.Clock.Now()) {
		if err := s.Challenges.ConsumeInstance(ctx, c); err != nil {
			return SessionResult{}, err
		}
		l.Info("otp verification rejected", slog.String("reason", "challenge_expired"))
		return SessionResult{}, ErrChallengeExpired
	}

	// 5. Attempts already used up
	if c.Attempts >= s.Challenges.MaxAttempts {
		if err := s.Challenges.ConsumeInstance(ctx, c); err != nil {
			return SessionResult{}, err
		}
		l.Info("otp verification rejected", slog.String("reason", "attempts_exceeded"))
		return SessionResult{}, ErrAttemptsExceeded
	}

	// 6. Compare
	if subtle.ConstantTimeCompare([]byte(code), []byte(c.Code)) != 1 {
		attempts, exhausted, err := s.Challenges.RecordFailedAttempt(ctx, c)
		if err != nil {
			return SessionResult{}, err
		}
		if exhausted {
			l.Info("otp verification rejected", slog.String("reason", "attempts_exceeded"), slog.Int("attempts", attempts))
			return SessionResult{}, ErrAttemptsExceeded
		}
		l.Info("otp verification rejected", slog.String("reason", "invalid_code"), slog.Int("attempts", attempts))
		return SessionResult{}, ErrInvalidCode
	}

	redeemed, err := s.Challenges.Redeem(ctx, c)
	if err != nil {
		return SessionResult{}, err
	}
	if !redeemed {
		l.Info("otp verification rejected", slog.String("reason", "already_redeemed"))
		return SessionResult{}, ErrChallengeNotFound
	}

	u, err := s.Directory.Lookup(ctx, owner)
	if err != nil {
		l.Error("failed to load user for session", slog.Any("error", err))
		return SessionResult{}, fmt.Errorf("lookup user: %w", err)
	}

	session, err := s.Issuer.IssueSession(ctx, u, SessionClaims{
		Email:    u.Email,
		FullName: u.FullName(),
		AMR:      []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA},
	}, s.sessionTTL())
	if err != nil {
		l.Error("failed to issue session token", slog.Any("error", err))
		return SessionResult{}, fmt.Errorf("issue session token: %w", err)
	}

	l.Info("otp verification succeeded")
	return SessionResult{SessionToken: session, User: u}, nil
}

func (s *AuthService) pendingTTL() time.Duration {
	if s.PendingTTL <= 0 {
		return DefaultPendingTTL
	}
	return s.PendingTTL
}

func (s *AuthService) sessionTTL() time.Duration {
	if s.SessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.SessionTTL
}

func (s *AuthService) notifyTimeout() time.Duration {
	if s.NotifyTimeout <= 0 {
		return DefaultNotifyTimeout
	}
	return s.NotifyTimeout
}
