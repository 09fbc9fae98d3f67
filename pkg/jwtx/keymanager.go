package jwtx

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aussiebroadwan/otpauth/pkg/cryptox"
)

const (
	defaultNumKeys = 1
	maxNumKeys     = 10
	defaultRSABits = 4096
)

// KeyManager owns the signing keys of one instance together with the
// KeySet and Verifier built from them.
type KeyManager struct {
	Verifier *KeySetVerifier
	KeySet   *KeySet

	algorithm string
	signers   []Signer
}

// KeyManagerOptions configures NewEphemeralKeyManager.
type KeyManagerOptions struct {
	Algorithm string // RS256, ES256 or EdDSA
	Issuer    string
	Audience  []string
	RSABits   int // RS256 only, defaults to 4096
	NumKeys   int // defaults to 1, capped at 10
	Now       func() time.Time
}

// NewEphemeralKeyManager generates fresh keys that only live in memory.
// Every token signed before a restart stops verifying after it, which is
// fine for two minute pending tokens and forces re-login for sessions.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	n := opts.NumKeys
	if n <= 0 {
		n = defaultNumKeys
	}
	n = min(n, maxNumKeys)

	keys := NewKeySet()
	signers := make([]Signer, 0, n)

	for i := range n {
		kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key id: %w", err)
		}

		pemKey, err := generateKey(opts.Algorithm, opts.RSABits)
		if err != nil {
			return nil, err
		}

		signer, err := NewSigner(opts.Algorithm, "otpauth-"+kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := keys.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: publish signer %d: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return &KeyManager{
		Verifier: NewVerifier(keys, VerifyOptions{
			Algorithm: opts.Algorithm,
			Issuer:    opts.Issuer,
			Audience:  opts.Audience,
			Now:       opts.Now,
		}),
		KeySet:    keys,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

func generateKey(alg string, rsaBits int) ([]byte, error) {
	switch alg {
	case AlgorithmEdDSA:
		return cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		return cryptox.GenerateES256Key()
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = defaultRSABits
		}
		return cryptox.GenerateRSAKey(rsaBits)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", alg)
	}
}

func (km *KeyManager) Algorithm() string { return km.algorithm }
func (km *KeyManager) IsReady() bool     { return km.KeySet.IsReady() }
func (km *KeyManager) NumSigners() int   { return len(km.signers) }

// GetSigner picks one of the signing keys at random.
func (km *KeyManager) GetSigner() Signer {
	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))] // #nosec G404
	}
}
