// Package storetest holds the behaviour every store.Challenges driver must
// share, run from each driver's own tests.
package storetest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/idx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) store.Challenges

// base is millisecond aligned because the sql and redis drivers persist
// millis. It tracks the wall clock since redis expires keys for real.
var base = time.Now().UTC().Truncate(time.Millisecond)

// NewChallenge builds a challenge for owner that expires ttl after base.
func NewChallenge(owner, code string, ttl time.Duration) domain.Challenge {
	return domain.Challenge{
		ID:        idx.New().String(),
		Owner:     owner,
		Code:      code,
		CreatedAt: base,
		ExpiresAt: base.Add(ttl),
	}
}

// RunChallenges exercises the store.Challenges contract.
func RunChallenges(t *testing.T, newStore Factory) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetChallenge(t.Context(), idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		owner := idx.New().String()
		c := NewChallenge(owner, "123456", 2*time.Minute)
		require.NoError(t, s.PutChallenge(t.Context(), c))

		got, err := s.GetChallenge(t.Context(), owner)
		require.NoError(t, err)
		require.Equal(t, c.ID, got.ID)
		require.Equal(t, owner, got.Owner)
		require.Equal(t, "123456", got.Code)
		require.Zero(t, got.Attempts)
		require.True(t, c.CreatedAt.Equal(got.CreatedAt))
		require.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("put replaces previous challenge", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()

		first := NewChallenge(owner, "111111", 2*time.Minute)
		require.NoError(t, s.PutChallenge(ctx, first))
		_, _, err := s.IncrementChallengeAttempts(ctx, owner, first.ID, 3)
		require.NoError(t, err)

		second := NewChallenge(owner, "222222", 2*time.Minute)
		require.NoError(t, s.PutChallenge(ctx, second))

		got, err := s.GetChallenge(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, second.ID, got.ID)
		require.Equal(t, "222222", got.Code)
		require.Zero(t, got.Attempts)

		// The superseded instance can no longer be touched.
		_, _, err = s.IncrementChallengeAttempts(ctx, owner, first.ID, 3)
		require.ErrorIs(t, err, store.ErrNotFound)
		ok, err := s.DeleteChallengeInstance(ctx, owner, first.ID)
		require.NoError(t, err)
		require.False(t, ok)

		_, err = s.GetChallenge(ctx, owner)
		require.NoError(t, err)
	})

	t.Run("increment deletes at limit", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()
		c := NewChallenge(owner, "123456", 2*time.Minute)
		require.NoError(t, s.PutChallenge(ctx, c))

		for want := 1; want <= 2; want++ {
			n, deleted, err := s.IncrementChallengeAttempts(ctx, owner, c.ID, 3)
			require.NoError(t, err)
			require.Equal(t, want, n)
			require.False(t, deleted)

			got, err := s.GetChallenge(ctx, owner)
			require.NoError(t, err)
			require.Equal(t, want, got.Attempts)
		}

		n, deleted, err := s.IncrementChallengeAttempts(ctx, owner, c.ID, 3)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		require.True(t, deleted)

		_, err = s.GetChallenge(ctx, owner)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("increment missing", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.IncrementChallengeAttempts(t.Context(), idx.New().String(), idx.New().String(), 3)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()

		require.NoError(t, s.DeleteChallenge(ctx, owner))

		require.NoError(t, s.PutChallenge(ctx, NewChallenge(owner, "123456", time.Minute)))
		require.NoError(t, s.DeleteChallenge(ctx, owner))
		require.NoError(t, s.DeleteChallenge(ctx, owner))

		_, err := s.GetChallenge(ctx, owner)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete instance", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()
		c := NewChallenge(owner, "123456", time.Minute)
		require.NoError(t, s.PutChallenge(ctx, c))

		ok, err := s.DeleteChallengeInstance(ctx, owner, idx.New().String())
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = s.DeleteChallengeInstance(ctx, owner, c.ID)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.DeleteChallengeInstance(ctx, owner, c.ID)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("delete expired", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		dead := NewChallenge(idx.New().String(), "111111", time.Minute)
		live := NewChallenge(idx.New().String(), "222222", 10*time.Minute)
		require.NoError(t, s.PutChallenge(ctx, dead))
		require.NoError(t, s.PutChallenge(ctx, live))

		n, err := s.DeleteExpiredChallenges(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = s.GetChallenge(ctx, dead.Owner)
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetChallenge(ctx, live.Owner)
		require.NoError(t, err)
	})

	t.Run("owners are independent", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		a := NewChallenge(idx.New().String(), "111111", time.Minute)
		b := NewChallenge(idx.New().String(), "222222", time.Minute)
		require.NoError(t, s.PutChallenge(ctx, a))
		require.NoError(t, s.PutChallenge(ctx, b))

		require.NoError(t, s.DeleteChallenge(ctx, a.Owner))

		got, err := s.GetChallenge(ctx, b.Owner)
		require.NoError(t, err)
		require.Equal(t, "222222", got.Code)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()
		c := NewChallenge(owner, "123456", time.Minute)
		require.NoError(t, s.PutChallenge(ctx, c))

		const workers = 20
		runConcurrently(workers, func() {
			_, _, err := s.IncrementChallengeAttempts(ctx, owner, c.ID, 1000)
			assert.NoError(t, err)
		})

		got, err := s.GetChallenge(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, workers, got.Attempts)
	})

	t.Run("concurrent increments stop at limit", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()
		c := NewChallenge(owner, "123456", time.Minute)
		require.NoError(t, s.PutChallenge(ctx, c))

		var counted, deletions, gone atomic.Int32
		runConcurrently(10, func() {
			_, deleted, err := s.IncrementChallengeAttempts(ctx, owner, c.ID, 3)
			switch {
			case err == nil:
				counted.Add(1)
				if deleted {
					deletions.Add(1)
				}
			default:
				assert.ErrorIs(t, err, store.ErrNotFound)
				gone.Add(1)
			}
		})

		require.EqualValues(t, 3, counted.Load())
		require.EqualValues(t, 1, deletions.Load())
		require.EqualValues(t, 7, gone.Load())
	})

	t.Run("concurrent redeem succeeds once", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		owner := idx.New().String()
		c := NewChallenge(owner, "123456", time.Minute)
		require.NoError(t, s.PutChallenge(ctx, c))

		var wins atomic.Int32
		runConcurrently(10, func() {
			ok, err := s.DeleteChallengeInstance(ctx, owner, c.ID)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		})
		require.EqualValues(t, 1, wins.Load())
	})
}

func runConcurrently(n int, fn func()) {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn()
		}()
	}
	close(start)
	wg.Wait()
}
