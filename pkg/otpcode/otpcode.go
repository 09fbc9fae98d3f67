// Package otpcode generates fixed-width numeric one-time codes.
package otpcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/pquerna/otp"
)

// ErrUnsupportedDigits is returned for widths other than six or eight.
var ErrUnsupportedDigits = errors.New("otpcode: digits must be 6 or 8")

// Generator produces one-time codes.
type Generator interface {
	Generate() (string, error)
}

// Numeric draws codes uniformly from [10^(d-1), 10^d-1], so a six digit
// code never starts with a zero.
type Numeric struct {
	digits otp.Digits
	low    *big.Int
	span   *big.Int
	rand   io.Reader
}

// New returns a generator backed by crypto/rand.
func New(digits otp.Digits) (*Numeric, error) {
	return NewWithReader(digits, rand.Reader)
}

// NewWithReader is New with an explicit entropy source. Only tests should
// pass anything other than crypto/rand.Reader.
func NewWithReader(digits otp.Digits, r io.Reader) (*Numeric, error) {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		return nil, ErrUnsupportedDigits
	}

	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits.Length()-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))

	return &Numeric{digits: digits, low: low, span: span, rand: r}, nil
}

// Digits reports the width of generated codes.
func (g *Numeric) Digits() int { return g.digits.Length() }

// Generate returns a fresh code.
func (g *Numeric) Generate() (string, error) {
	n, err := rand.Int(g.rand, g.span)
	if err != nil {
		return "", fmt.Errorf("otpcode: read entropy: %w", err)
	}
	n.Add(n, g.low)

	// 99999999 fits comfortably in an int32.
	return g.digits.Format(int32(n.Int64())), nil // #nosec G115
}
