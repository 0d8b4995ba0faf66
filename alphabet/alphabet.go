// Package alphabet generates the per-position character-to-segment mappings
// that the protocol engine's commit/transform rounds operate over.
package alphabet

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrInvalidParameter is returned when segments < 1.
var ErrInvalidParameter = errors.New("alphabet: invalid parameter")

// Alphabet is the fixed ordered set of 95 printable characters shared by
// both parties: upper- and lower-case letters, digits, punctuation, and the
// space character (ASCII 0x20 through 0x7E).
var Alphabet = buildAlphabet()

func buildAlphabet() []rune {
	out := make([]rune, 0, 95)
	for c := rune(0x20); c <= 0x7E; c++ {
		out = append(out, c)
	}
	return out
}

// Index returns the position of c within Alphabet, or -1 if c is outside it.
func Index(c rune) int {
	if c < 0x20 || c > 0x7E {
		return -1
	}
	return int(c - 0x20)
}

// Mapping is a total function Alphabet -> {1..segments}, keyed by the
// single-character string form of each alphabet member so it serializes
// directly as a canonical JSON object.
type Mapping map[string]int

// shuffle returns a cryptographically-shuffled permutation of [0, n).
func shuffle(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			panic("alphabet: shuffle: " + err.Error())
		}
		j := int(jBig.Int64())
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// newMapping builds one fresh random mapping: shuffle the alphabet, shuffle
// the segment labels, partition the shuffled alphabet into segments
// contiguous chunks whose sizes differ by at most one, and assign the k-th
// shuffled label to every character in chunk k.
func newMapping(segments int) Mapping {
	alphaOrder := shuffle(len(Alphabet))
	labelOrder := shuffle(segments)

	m := make(Mapping, len(Alphabet))
	for pos, alphaIdx := range alphaOrder {
		chunk := pos * segments / len(Alphabet)
		label := labelOrder[chunk] + 1
		m[string(Alphabet[alphaIdx])] = label
	}
	return m
}

// Generate produces length freshly-random mappings, each partitioning
// Alphabet into segments segments.
func Generate(length, segments int) ([]Mapping, error) {
	if segments < 1 {
		return nil, ErrInvalidParameter
	}
	out := make([]Mapping, length)
	for i := range out {
		out[i] = newMapping(segments)
	}
	return out, nil
}

// Extend pads mappings with freshly generated entries so the result has
// length max(target, len(mappings)); existing entries are left untouched.
func Extend(mappings []Mapping, target, segments int) ([]Mapping, error) {
	if segments < 1 {
		return nil, ErrInvalidParameter
	}
	n := target
	if len(mappings) > n {
		n = len(mappings)
	}
	out := make([]Mapping, n)
	copy(out, mappings)
	for i := len(mappings); i < n; i++ {
		out[i] = newMapping(segments)
	}
	return out, nil
}
