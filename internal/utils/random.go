package utils

import (
	"crypto/rand"
	"math/big"
)

// Random yields random integers. It is an interface so room code allocation
// can be driven deterministically in tests.
type Random interface {
	// Intn returns a random int in [0, n).
	Intn(n int) int
}

// CryptoRandom implements Random using crypto/rand.
type CryptoRandom struct{}

// NewRandom creates a new CryptoRandom.
func NewRandom() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n).
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}
