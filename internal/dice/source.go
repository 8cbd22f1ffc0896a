package dice

import (
	"crypto/rand"
	"math/big"
)

// Source is the randomness provider for Roller.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Int returns a uniform random integer in [0, n).
	//
	// Precondition: n > 0.
	Int(n *big.Int) *big.Int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Int is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Int returns a cryptographically secure random integer in [0, n).
//
// Precondition: n > 0. Panics with "dice: Int called with n <= 0" otherwise.
// Panics with "dice: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Int(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		panic("dice: Int called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, n)
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return val
}
