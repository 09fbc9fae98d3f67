// Package memory is an in-process challenge store. Challenges are lost on
// restart, which is acceptable for single-instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/internal/auth/store"
	"github.com/aussiebroadwan/otpauth/pkg/keylock"
)

var _ store.ChallengeBackend = (*Store)(nil)

// Store keeps challenges in a map. Read-modify-write operations hold the
// owner's lock so concurrent calls for one owner are serialised while
// different owners proceed independently.
type Store struct {
	owners keylock.Map

	mu         sync.RWMutex
	challenges map[string]domain.Challenge
}

func NewStore() *Store {
	return &Store{challenges: make(map[string]domain.Challenge)}
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) load(owner string) (domain.Challenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[owner]
	return c, ok
}

func (s *Store) store(c domain.Challenge) {
	s.mu.Lock()
	s.challenges[c.Owner] = c
	s.mu.Unlock()
}

func (s *Store) remove(owner string) {
	s.mu.Lock()
	delete(s.challenges, owner)
	s.mu.Unlock()
}

func (s *Store) PutChallenge(_ context.Context, c domain.Challenge) error {
	unlock := s.owners.Lock(c.Owner)
	defer unlock()

	s.store(c)
	return nil
}

func (s *Store) GetChallenge(_ context.Context, owner string) (domain.Challenge, error) {
	c, ok := s.load(owner)
	if !ok {
		return domain.Challenge{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) IncrementChallengeAttempts(_ context.Context, owner, id string, limit int) (int, bool, error) {
	unlock := s.owners.Lock(owner)
	defer unlock()

	c, ok := s.load(owner)
	if !ok || c.ID != id {
		return 0, false, store.ErrNotFound
	}

	c.Attempts++
	if c.Attempts >= limit {
		s.remove(owner)
		return c.Attempts, true, nil
	}
	s.store(c)
	return c.Attempts, false, nil
}

func (s *Store) DeleteChallenge(_ context.Context, owner string) error {
	unlock := s.owners.Lock(owner)
	defer unlock()

	s.remove(owner)
	return nil
}

func (s *Store) DeleteChallengeInstance(_ context.Context, owner, id string) (bool, error) {
	unlock := s.owners.Lock(owner)
	defer unlock()

	c, ok := s.load(owner)
	if !ok || c.ID != id {
		return false, nil
	}
	s.remove(owner)
	return true, nil
}

func (s *Store) DeleteExpiredChallenges(_ context.Context, before time.Time) (int64, error) {
	s.mu.RLock()
	var candidates []string
	for owner, c := range s.challenges {
		if c.ExpiredAt(before) {
			candidates = append(candidates, owner)
		}
	}
	s.mu.RUnlock()

	var n int64
	for _, owner := range candidates {
		unlock := s.owners.Lock(owner)
		// Re-check, the owner may have been issued a fresh challenge.
		if c, ok := s.load(owner); ok && c.ExpiredAt(before) {
			s.remove(owner)
			n++
		}
		unlock()
	}
	return n, nil
}

// Len reports how many challenges are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.challenges)
}
