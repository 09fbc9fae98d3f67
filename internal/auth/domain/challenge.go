package domain

import "time"

// Challenge is the outstanding one-time code for a single owner. At most
// one exists per owner; creating another replaces it.
type Challenge struct {
	ID        string // ULID of this instance
	Owner     string // user ID
	Code      string
	Attempts  int // failed comparisons so far
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the challenge is dead at now. Validity is
// now < ExpiresAt, so the expiry instant itself is already expired.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
