package service_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/service"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/otpcode"
	"github.com/stretchr/testify/require"
)

func newChallengeStore(t *testing.T, clk *clock.Manual) *service.ChallengeStore {
	t.Helper()
	codes, err := otpcode.New(6)
	require.NoError(t, err)
	return service.NewChallengeStore(memory.NewStore(), codes, clk, 2*time.Minute, 3)
}

func TestChallengeStoreCreate(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(testStart)
	s := newChallengeStore(t, clk)

	c, err := s.Create(t.Context(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", c.Owner)
	require.Len(t, c.Code, 6)
	require.NotEmpty(t, c.ID)
	require.Zero(t, c.Attempts)
	require.True(t, c.CreatedAt.Equal(testStart))
	require.True(t, c.ExpiresAt.Equal(testStart.Add(2*time.Minute)))

	got, err := s.Get(t.Context(), "user-1")
	require.NoError(t, err)
	require.Equal(t, c, got)
}

func TestChallengeStoreDefaults(t *testing.T) {
	t.Parallel()

	s := service.NewChallengeStore(memory.NewStore(), nil, nil, 0, 0)
	require.Equal(t, service.DefaultChallengeTTL, s.TTL)
	require.Equal(t, service.DefaultMaxAttempts, s.MaxAttempts)
	require.NotNil(t, s.Clock)
}

func TestChallengeStoreRecordFailedAttempt(t *testing.T) {
	t.Parallel()

	s := newChallengeStore(t, clock.NewManual(testStart))
	ctx := t.Context()

	c, err := s.Create(ctx, "user-1")
	require.NoError(t, err)

	n, exhausted, err := s.RecordFailedAttempt(ctx, c)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.False(t, exhausted)

	// A replaced challenge is not touched.
	fresh, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	n, exhausted, err = s.RecordFailedAttempt(ctx, c)
	require.NoError(t, err)
	require.Zero(t, n)
	require.False(t, exhausted)

	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, fresh.ID, got.ID)
	require.Zero(t, got.Attempts)

	for range 2 {
		_, exhausted, err = s.RecordFailedAttempt(ctx, fresh)
		require.NoError(t, err)
		require.False(t, exhausted)
	}
	n, exhausted, err = s.RecordFailedAttempt(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, exhausted)

	_, err = s.Get(ctx, "user-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeStoreConsumeAndRedeem(t *testing.T) {
	t.Parallel()

	s := newChallengeStore(t, clock.NewManual(testStart))
	ctx := t.Context()

	require.NoError(t, s.Consume(ctx, "nobody"))

	c, err := s.Create(ctx, "user-1")
	require.NoError(t, err)

	ok, err := s.Redeem(ctx, c)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Redeem(ctx, c)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Create(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, s.Consume(ctx, "user-1"))
	require.NoError(t, s.Consume(ctx, "user-1"))
	_, err = s.Get(ctx, "user-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestChallengeStoreConsumeInstance(t *testing.T) {
	t.Parallel()

	s := newChallengeStore(t, clock.NewManual(testStart))
	ctx := t.Context()

	old, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	current, err := s.Create(ctx, "user-1")
	require.NoError(t, err)
	require.NotEqual(t, old.ID, current.ID)

	// Superseded instance: nothing to remove.
	require.NoError(t, s.ConsumeInstance(ctx, old))
	got, err := s.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, current.ID, got.ID)

	require.NoError(t, s.ConsumeInstance(ctx, current))
	_, err = s.Get(ctx, "user-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestHousekeepingPurgesExpired(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(testStart)
	s := newChallengeStore(t, clk)
	ctx := t.Context()

	_, err := s.Create(ctx, "old")
	require.NoError(t, err)
	clk.Advance(90 * time.Second)
	_, err = s.Create(ctx, "new")
	require.NoError(t, err)
	clk.Advance(30 * time.Second)

	var buf bytes.Buffer
	hk := service.NewHousekeepingService(s, slog.New(slog.NewJSONHandler(&buf, nil)), 0)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Cleanup(ctx)
	require.Contains(t, buf.String(), `"expired_challenges":1`)

	_, err = s.Get(ctx, "old")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, "new")
	require.NoError(t, err)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()

	s := newChallengeStore(t, clock.NewManual(testStart))
	hk := service.NewHousekeepingService(s, slog.New(slog.DiscardHandler), time.Millisecond)
	hk.Start()
	time.Sleep(5 * time.Millisecond)
	hk.Stop()
}
