package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement the driver runs, bound to a DB or a Tx.
type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries { return &queries{db: db} }

const userColumns = `id, email, first_name, last_name, password_hash, active, created_at, updated_at`

type userRow struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Active       bool
	CreatedAt    int64
	UpdatedAt    int64
}

func scanUser(row *sql.Row) (userRow, error) {
	var u userRow
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *queries) getUserByID(ctx context.Context, id string) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (q *queries) getUserByEmail(ctx context.Context, email string) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
}

func (q *queries) createUser(ctx context.Context, u userRow) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
	return err
}

type challengeRow struct {
	Owner     string
	ID        string
	Code      string
	Attempts  int
	CreatedAt int64
	ExpiresAt int64
}

func (q *queries) upsertChallenge(ctx context.Context, c challengeRow) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (owner, id, code, attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner) DO UPDATE SET
			id         = excluded.id,
			code       = excluded.code,
			attempts   = excluded.attempts,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		c.Owner, c.ID, c.Code, c.Attempts, c.CreatedAt, c.ExpiresAt)
	return err
}

func (q *queries) getChallenge(ctx context.Context, owner string) (challengeRow, error) {
	var c challengeRow
	err := q.db.QueryRowContext(ctx,
		`SELECT owner, id, code, attempts, created_at, expires_at FROM otp_challenges WHERE owner = ?`, owner).
		Scan(&c.Owner, &c.ID, &c.Code, &c.Attempts, &c.CreatedAt, &c.ExpiresAt)
	return c, err
}

func (q *queries) incrementChallengeAttempts(ctx context.Context, owner, id string) (int, error) {
	var attempts int
	err := q.db.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE owner = ? AND id = ? RETURNING attempts`,
		owner, id).Scan(&attempts)
	return attempts, err
}

func (q *queries) deleteChallenge(ctx context.Context, owner string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE owner = ?`, owner)
	return err
}

func (q *queries) deleteChallengeInstance(ctx context.Context, owner, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *queries) deleteExpiredChallenges(ctx context.Context, before int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at <= ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
