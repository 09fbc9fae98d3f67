package domain

import "time"

// IssuedToken is a signed credential handed back to the caller.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// ExpiresIn is the remaining lifetime in whole seconds, never negative.
func (t IssuedToken) ExpiresIn(now time.Time) int64 {
	secs := int64(t.ExpiresAt.Sub(now) / time.Second)
	return max(secs, 0)
}
