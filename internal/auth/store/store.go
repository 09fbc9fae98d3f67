package store

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface implemented by the SQL drivers.
// Sub-repositories hang off it so a Tx can hand out the same repos bound
// to the transaction.
type Store interface {
	Users() Users
	Challenges() Challenges

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u. Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error
}

// Challenges persists at most one OTP challenge per owner. Every method is
// atomic with respect to other calls for the same owner.
type Challenges interface {
	// PutChallenge stores c, replacing whatever the owner had before.
	PutChallenge(ctx context.Context, c domain.Challenge) error

	// GetChallenge returns the owner's challenge, expired or not, or
	// ErrNotFound.
	GetChallenge(ctx context.Context, owner string) (domain.Challenge, error)

	// IncrementChallengeAttempts bumps attempts on the challenge instance id
	// and deletes it once attempts reaches limit. Returns ErrNotFound when that
	// instance is no longer the owner's current challenge.
	IncrementChallengeAttempts(ctx context.Context, owner, id string, limit int) (attempts int, deleted bool, err error)

	// DeleteChallenge removes the owner's challenge. Deleting nothing is not
	// an error.
	DeleteChallenge(ctx context.Context, owner string) error

	// DeleteChallengeInstance removes the owner's challenge only if it is
	// still instance id, reporting whether anything was deleted.
	DeleteChallengeInstance(ctx context.Context, owner, id string) (bool, error)

	// DeleteExpiredChallenges removes challenges with expires_at <= before.
	DeleteExpiredChallenges(ctx context.Context, before time.Time) (int64, error)
}

// ChallengeBackend is a standalone challenge store (memory, redis) with
// its own lifecycle.
type ChallengeBackend interface {
	Challenges
	io.Closer
	Ping(ctx context.Context) error
}
