package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFullName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user User
		want string
	}{
		{"both names", User{FirstName: "Ann", LastName: "Example", Email: "a@x.com"}, "Ann Example"},
		{"first only", User{FirstName: " Ann ", Email: "a@x.com"}, "Ann"},
		{"last only", User{LastName: "Example", Email: "a@x.com"}, "Example"},
		{"no names", User{Email: "a@x.com"}, "a@x.com"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.user.FullName(), tt.name)
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestChallengeExpiredAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Challenge{ExpiresAt: now.Add(2 * time.Minute)}

	require.False(t, c.ExpiredAt(now))
	require.False(t, c.ExpiredAt(now.Add(2*time.Minute-time.Nanosecond)))
	require.True(t, c.ExpiredAt(now.Add(2*time.Minute)))
	require.True(t, c.ExpiredAt(now.Add(time.Hour)))
}

func TestIssuedTokenExpiresIn(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := IssuedToken{ExpiresAt: now.Add(120 * time.Second)}

	require.EqualValues(t, 120, tok.ExpiresIn(now))
	require.EqualValues(t, 0, tok.ExpiresIn(now.Add(time.Hour)))
}
