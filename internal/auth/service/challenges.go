package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/idx"
	"github.com/aussiebroadwan/otpauth/pkg/otpcode"
)

const (
	DefaultChallengeTTL = 2 * time.Minute
	DefaultMaxAttempts  = 3
)

// ChallengeStore owns the lifecycle of one-time code challenges on top of
// a persistence driver. It keeps at most one challenge per owner.
type ChallengeStore struct {
	Store       store.Challenges
	Codes       otpcode.Generator
	Clock       clock.Clocker
	TTL         time.Duration
	MaxAttempts int
}

// NewChallengeStore fills in defaults for zero ttl and maxAttempts.
func NewChallengeStore(s store.Challenges, codes otpcode.Generator, clk clock.Clocker, ttl time.Duration, maxAttempts int) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ChallengeStore{
		Store:       s,
		Codes:       codes,
		Clock:       clk,
		TTL:         ttl,
		MaxAttempts: maxAttempts,
	}
}

// Create issues a fresh challenge for owner, replacing any previous one.
func (s *ChallengeStore) Create(ctx context.Context, owner string) (domain.Challenge, error) {
	code, err := s.Codes.Generate()
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("generate code: %w", err)
	}

	now := s.Clock.Now()
	c := domain.Challenge{
		ID:        idx.NewAt(now).String(),
		Owner:     owner,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := s.Store.PutChallenge(ctx, c); err != nil {
		return domain.Challenge{}, fmt.Errorf("put challenge: %w", err)
	}
	return c, nil
}

// Get returns the owner's challenge, expired or not, or store.ErrNotFound.
func (s *ChallengeStore) Get(ctx context.Context, owner string) (domain.Challenge, error) {
	return s.Store.GetChallenge(ctx, owner)
}

// RecordFailedAttempt counts one failed comparison against c and reports
// whether that exhausted it. A challenge that has since been replaced or
// removed is left alone and reported as (0, false).
func (s *ChallengeStore) RecordFailedAttempt(ctx context.Context, c domain.Challenge) (attempts int, exhausted bool, err error) {
	attempts, exhausted, err = s.Store.IncrementChallengeAttempts(ctx, c.Owner, c.ID, s.MaxAttempts)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("record failed attempt: %w", err)
	}
	return attempts, exhausted, nil
}

// Consume removes the owner's challenge. Removing nothing is fine.
func (s *ChallengeStore) Consume(ctx context.Context, owner string) error {
	if err := s.Store.DeleteChallenge(ctx, owner); err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

// ConsumeInstance removes c only if it is still the owner's current
// challenge. A newer challenge created since c was read is left alone.
func (s *ChallengeStore) ConsumeInstance(ctx context.Context, c domain.Challenge) error {
	if _, err := s.Store.DeleteChallengeInstance(ctx, c.Owner, c.ID); err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

// Redeem deletes exactly instance c and reports whether this call was the
// one that removed it. Of several concurrent redeems only one sees true.
func (s *ChallengeStore) Redeem(ctx context.Context, c domain.Challenge) (bool, error) {
	ok, err := s.Store.DeleteChallengeInstance(ctx, c.Owner, c.ID)
	if err != nil {
		return false, fmt.Errorf("redeem challenge: %w", err)
	}
	return ok, nil
}

// PurgeExpired drops every challenge that is dead at the current time.
func (s *ChallengeStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.Store.DeleteExpiredChallenges(ctx, s.Clock.Now())
}
