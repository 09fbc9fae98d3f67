package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
)

type challengesRepo struct {
	q  *queries
	db *sql.DB // nil when already bound to a transaction
}

func (r *challengesRepo) PutChallenge(ctx context.Context, c domain.Challenge) error {
	return r.q.upsertChallenge(ctx, challengeRow{
		Owner:     c.Owner,
		ID:        c.ID,
		Code:      c.Code,
		Attempts:  c.Attempts,
		CreatedAt: toMillis(c.CreatedAt),
		ExpiresAt: toMillis(c.ExpiresAt),
	})
}

func (r *challengesRepo) GetChallenge(ctx context.Context, owner string) (domain.Challenge, error) {
	row, err := r.q.getChallenge(ctx, owner)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	return domain.Challenge{
		ID:        row.ID,
		Owner:     row.Owner,
		Code:      row.Code,
		Attempts:  row.Attempts,
		CreatedAt: fromMillis(row.CreatedAt),
		ExpiresAt: fromMillis(row.ExpiresAt),
	}, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, owner, id string, limit int) (int, bool, error) {
	var (
		attempts int
		deleted  bool
	)
	err := r.atomically(ctx, func(q *queries) error {
		n, err := q.incrementChallengeAttempts(ctx, owner, id)
		if err != nil {
			return mapNotFound(err)
		}
		attempts = n

		if n >= limit {
			if _, err := q.deleteChallengeInstance(ctx, owner, id); err != nil {
				return err
			}
			deleted = true
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return attempts, deleted, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, owner string) error {
	return r.q.deleteChallenge(ctx, owner)
}

func (r *challengesRepo) DeleteChallengeInstance(ctx context.Context, owner, id string) (bool, error) {
	n, err := r.q.deleteChallengeInstance(ctx, owner, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error) {
	return r.q.deleteExpiredChallenges(ctx, toMillis(before))
}

// atomically runs fn in its own transaction unless the repo is already
// bound to one.
func (r *challengesRepo) atomically(ctx context.Context, fn func(q *queries) error) error {
	if r.db == nil {
		return fn(r.q)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(newQueries(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
