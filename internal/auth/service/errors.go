package service

import "errors"

// Failure kinds of the two-step login. Every one ends the attempt except
// ErrInvalidCode, which leaves the challenge open for another try.
var (
	ErrInvalidCredentials    = errors.New("invalid_credentials")
	ErrNotificationFailed    = errors.New("notification_failed")
	ErrMissingOrInvalidToken = errors.New("invalid_token")
	ErrChallengeNotFound     = errors.New("challenge_not_found")
	ErrChallengeExpired      = errors.New("challenge_expired")
	ErrAttemptsExceeded      = errors.New("attempts_exceeded")
	ErrInvalidCode           = errors.New("invalid_code")
)
