package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer signs claims with one private key.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
	jwk    JWK
}

// NewSigner loads a PEM private key for alg. EdDSA and ES256 keys must be
// PKCS8; RS256 accepts PKCS1 or PKCS8.
func NewSigner(alg, kid string, pemKey []byte) (Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM private key")
	}

	var (
		key    crypto.Signer
		method jwt.SigningMethod
	)

	switch alg {
	case AlgorithmEdDSA:
		k, err := parsePKCS8[ed25519.PrivateKey](block)
		if err != nil {
			return nil, err
		}
		key, method = k, jwt.SigningMethodEdDSA

	case AlgorithmES256:
		k, err := parsePKCS8[*ecdsa.PrivateKey](block)
		if err != nil {
			return nil, err
		}
		if k.Curve.Params().Name != "P-256" {
			return nil, errors.New("jwtx: ES256 requires a P-256 key")
		}
		key, method = k, jwt.SigningMethodES256

	case AlgorithmRS256:
		var k *rsa.PrivateKey
		var err error
		if block.Type == "RSA PRIVATE KEY" {
			k, err = x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("jwtx: parse PKCS1: %w", err)
			}
		} else if k, err = parsePKCS8[*rsa.PrivateKey](block); err != nil {
			return nil, err
		}
		key, method = k, jwt.SigningMethodRS256

	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}

	jwk, err := PublicJWK(kid, alg, key.Public())
	if err != nil {
		return nil, err
	}

	return &keySigner{kid: kid, method: method, key: key, jwk: jwk}, nil
}

func parsePKCS8[K any](block *pem.Block) (K, error) {
	var zero K
	if block.Type != "PRIVATE KEY" {
		return zero, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q", block.Type)
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return zero, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	k, ok := priv.(K)
	if !ok {
		return zero, fmt.Errorf("jwtx: unexpected key type %T", priv)
	}
	return k, nil
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}
