package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/otpauth/internal/auth/domain"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
)

const (
	DefaultPendingTTL = 2 * time.Minute
	DefaultSessionTTL = 24 * time.Hour
)

// SessionClaims are the identity claims placed in a session token.
type SessionClaims struct {
	Email    string
	FullName string
	AMR      []string
}

// CredentialIssuer mints and resolves the tokens of the login flow.
type CredentialIssuer interface {
	IssuePending(ctx context.Context, u domain.User, ttl time.Duration) (domain.IssuedToken, error)
	IssueSession(ctx context.Context, u domain.User, claims SessionClaims, ttl time.Duration) (domain.IssuedToken, error)

	// ResolvePending returns the user ID a pending token was issued to, or
	// ErrMissingOrInvalidToken.
	ResolvePending(ctx context.Context, token string) (string, error)
}

// TokenIssuer signs JWTs with the keys of a jwtx.KeyManager.
type TokenIssuer struct {
	Keys     *jwtx.KeyManager
	Issuer   string
	Audience []string
	Clock    clock.Clocker
}

var _ CredentialIssuer = (*TokenIssuer)(nil)

func (s *TokenIssuer) IssuePending(_ context.Context, u domain.User, ttl time.Duration) (domain.IssuedToken, error) {
	claims := jwtx.NewClaims(jwtx.TokenUsePending, u.ID, []string{jwtx.AMRPassword}, ttl, s.Issuer, s.Audience, s.Clock.Now())
	return s.sign(claims)
}

func (s *TokenIssuer) IssueSession(_ context.Context, u domain.User, extra SessionClaims, ttl time.Duration) (domain.IssuedToken, error) {
	claims := jwtx.NewClaims(jwtx.TokenUseSession, u.ID, extra.AMR, ttl, s.Issuer, s.Audience, s.Clock.Now())
	claims.Email = extra.Email
	claims.FullName = extra.FullName
	return s.sign(claims)
}

func (s *TokenIssuer) ResolvePending(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingOrInvalidToken
	}

	v := jwtx.UseVerifier{Verifier: s.Keys.Verifier, Use: jwtx.TokenUsePending}
	claims, err := v.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingOrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %w", ErrMissingOrInvalidToken, errors.New("missing subject"))
	}
	return claims.Subject, nil
}

func (s *TokenIssuer) sign(claims jwtx.Claims) (domain.IssuedToken, error) {
	signer := s.Keys.GetSigner()
	if signer == nil {
		return domain.IssuedToken{}, errors.New("no signing key available")
	}

	token, err := signer.Sign(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign %s token: %w", claims.TokenUse, err)
	}
	return domain.IssuedToken{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
