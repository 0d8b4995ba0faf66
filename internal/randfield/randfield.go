// Package randfield draws uniformly-distributed values used as salts and as
// the plaintext blinder in the verify round. It is built on
// github.com/bwesterb/go-ristretto's scalar sampler rather than a bare
// math/rand or crypto/rand.Int call, so that the one dependency the teacher
// repo declared for this purpose stays wired to a real cryptographic draw.
package randfield

import (
	"crypto/rand"
	"math/big"

	ristretto "github.com/bwesterb/go-ristretto"
)

// scalarUniform returns a fresh uniform scalar's byte representation,
// interpreted as a big-endian-independent non-negative integer. The
// ristretto group order is close to 2^252, comfortably more entropy than
// any modulus this package reduces against.
func scalarUniform() *big.Int {
	var s ristretto.Scalar
	s.Rand(rand.Reader)
	raw := s.Bytes()
	// go-ristretto encodes scalars little-endian; reverse for big.Int.
	be := make([]byte, len(raw))
	for i, b := range raw {
		be[len(raw)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

// scalarBound is the usable range of scalarUniform(): scalars are uniform
// over [0, group order), and the group order is slightly above 2^252, so
// values below 2^252 are uniform over [0, 2^252).
var scalarBound = new(big.Int).Lsh(big.NewInt(1), 252)

// Nonzero draws a value uniformly from {1, ..., modulus-1} by rejection
// sampling scalarUniform() against the largest multiple of (modulus-1) that
// fits under scalarBound, so the result carries no modulo bias.
func Nonzero(modulus uint64) uint64 {
	if modulus < 2 {
		panic("randfield: modulus must be at least 2")
	}
	span := new(big.Int).SetUint64(modulus - 1)
	limit := new(big.Int).Sub(scalarBound, new(big.Int).Mod(scalarBound, span))
	for {
		x := scalarUniform()
		if x.Cmp(limit) >= 0 {
			continue
		}
		return x.Mod(x, span).Uint64() + 1
	}
}

// Bytes returns n cryptographically random bytes, sourced the same way as
// Nonzero, for use as commitment/password salts.
func Bytes(n int) []byte {
	out := make([]byte, n)
	filled := 0
	for filled < n {
		var s ristretto.Scalar
		s.Rand(rand.Reader)
		raw := s.Bytes()
		filled += copy(out[filled:], raw)
	}
	return out
}
