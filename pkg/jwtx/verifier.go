package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
	ErrTokenUse    = errors.New("jwtx: unexpected token_use")
)

// Verifier checks a compact JWT and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions are the expectations applied to every token.
type VerifyOptions struct {
	Algorithm string
	Issuer    string   // empty accepts any
	Audience  []string // empty accepts any

	// Now overrides the clock used for exp/nbf. Defaults to time.Now.
	Now func() time.Time
}

// KeySetVerifier verifies tokens against the public keys in a KeySet.
type KeySetVerifier struct {
	keys *KeySet
	opts VerifyOptions
}

func NewVerifier(keys *KeySet, opts VerifyOptions) *KeySetVerifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &KeySetVerifier{keys: keys, opts: opts}
}

func (v *KeySetVerifier) Verify(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, ErrMalformed
	}

	// exp and nbf are checked by hand below, against the injected clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{v.opts.Algorithm}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKID
		}
		return v.keys.Get(kid)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownKID):
		return Claims{}, ErrUnknownKID
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiryAt(v.opts.Now()); err != nil {
		return Claims{}, err
	}

	return claims, nil
}

// UseVerifier narrows a Verifier to tokens of a single token_use.
type UseVerifier struct {
	Verifier
	Use string
}

func (u UseVerifier) Verify(raw string) (Claims, error) {
	c, err := u.Verifier.Verify(raw)
	if err != nil {
		return Claims{}, err
	}
	if err := c.ValidateUse(u.Use); err != nil {
		return Claims{}, err
	}
	return c, nil
}
