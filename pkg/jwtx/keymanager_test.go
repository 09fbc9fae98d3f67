package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/otpauth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, alg string, now func() time.Time) *jwtx.KeyManager {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: alg,
		Issuer:    "test-issuer",
		Audience:  []string{"test-audience"},
		RSABits:   2048, // keep RS256 tests quick
		NumKeys:   1,
		Now:       now,
	})
	require.NoError(t, err)
	return km
}

func TestNewEphemeralKeyManager(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			km := newManager(t, alg, nil)
			require.Equal(t, alg, km.Algorithm())
			require.True(t, km.IsReady())
			require.Equal(t, 1, km.NumSigners())
			require.Equal(t, alg, km.GetSigner().Alg())
			require.True(t, strings.HasPrefix(km.GetSigner().KID(), "otpauth-"))

			jwks := km.KeySet.PublicJWKS()
			require.Len(t, jwks.Keys, 1)
			require.Equal(t, km.GetSigner().KID(), jwks.Keys[0].Kid)
		})
	}
}

func TestNewEphemeralKeyManager_Errors(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA})
	require.Error(t, err, "issuer is required")

	_, err = jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: "HS256", Issuer: "x"})
	require.Error(t, err)
}

func TestNewEphemeralKeyManager_NumKeys(t *testing.T) {
	t.Parallel()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "iss",
		NumKeys:   50,
	})
	require.NoError(t, err)
	require.Equal(t, 10, km.NumSigners())
	require.Len(t, km.KeySet.PublicJWKS().Keys, 10)
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			km := newManager(t, alg, nil)
			claims := jwtx.NewClaims(jwtx.TokenUseSession, "user-1", []string{jwtx.AMRPassword, jwtx.AMROTP},
				time.Hour, "test-issuer", []string{"test-audience"}, time.Now())
			claims.Email = "a@x.com"
			claims.FullName = "Ann Example"

			tok, err := km.GetSigner().Sign(claims)
			require.NoError(t, err)

			got, err := km.Verifier.Verify(tok)
			require.NoError(t, err)
			require.Equal(t, "user-1", got.Subject)
			require.Equal(t, "a@x.com", got.Email)
			require.Equal(t, "Ann Example", got.FullName)
			require.Equal(t, jwtx.TokenUseSession, got.TokenUse)
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	km := newManager(t, jwtx.AlgorithmEdDSA, clock)
	other := newManager(t, jwtx.AlgorithmEdDSA, clock)

	sign := func(t *testing.T, km *jwtx.KeyManager, c jwtx.Claims) string {
		t.Helper()
		tok, err := km.GetSigner().Sign(c)
		require.NoError(t, err)
		return tok
	}
	good := func() jwtx.Claims {
		return jwtx.NewClaims(jwtx.TokenUsePending, "u", nil, 2*time.Minute, "test-issuer", []string{"test-audience"}, now)
	}

	t.Run("empty", func(t *testing.T) {
		_, err := km.Verifier.Verify("")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := km.Verifier.Verify("not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("signed by another instance", func(t *testing.T) {
		_, err := km.Verifier.Verify(sign(t, other, good()))
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok := sign(t, km, good())
		parts := strings.Split(tok, ".")
		forged := sign(t, km, jwtx.NewClaims(jwtx.TokenUseSession, "admin", nil, time.Hour, "test-issuer", nil, now))
		parts[1] = strings.Split(forged, ".")[1]

		_, err := km.Verifier.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := good()
		c.Issuer = "elsewhere"
		_, err := km.Verifier.Verify(sign(t, km, c))
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := good()
		c.Audience = []string{"nope"}
		_, err := km.Verifier.Verify(sign(t, km, c))
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("expired", func(t *testing.T) {
		c := jwtx.NewClaims(jwtx.TokenUsePending, "u", nil, 2*time.Minute, "test-issuer", []string{"test-audience"}, now.Add(-3*time.Minute))
		_, err := km.Verifier.Verify(sign(t, km, c))
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestUseVerifier(t *testing.T) {
	t.Parallel()

	km := newManager(t, jwtx.AlgorithmEdDSA, nil)
	pendingOnly := jwtx.UseVerifier{Verifier: km.Verifier, Use: jwtx.TokenUsePending}

	session, err := km.GetSigner().Sign(jwtx.NewClaims(jwtx.TokenUseSession, "u", nil, time.Hour, "test-issuer", []string{"test-audience"}, time.Now()))
	require.NoError(t, err)
	_, err = pendingOnly.Verify(session)
	require.ErrorIs(t, err, jwtx.ErrTokenUse)

	pending, err := km.GetSigner().Sign(jwtx.NewClaims(jwtx.TokenUsePending, "u", nil, time.Hour, "test-issuer", []string{"test-audience"}, time.Now()))
	require.NoError(t, err)
	c, err := pendingOnly.Verify(pending)
	require.NoError(t, err)
	require.Equal(t, "u", c.Subject)
}
