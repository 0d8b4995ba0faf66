// Package prizecodec encodes the 256-bit prize into an RS(48,32)-protected
// byte block and applies the password-derived XOR keystream that locks it
// to the correct mapping sequence.
package prizecodec

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/summitto/mystery-protocol/internal/cryptoutil"
)

// ErrPrizeUnrecoverable signals a genuine match whose prize bytes could not
// be reconstructed — a packaging defect, not an authentication failure.
var ErrPrizeUnrecoverable = errors.New("prizecodec: prize unrecoverable")

// EncodePrize big-endian serializes prize into 32 bytes and RS(48,32)
// encodes it.
func EncodePrize(prize *big.Int) ([CodeBytes]byte, error) {
	if prize.Sign() < 0 {
		return [CodeBytes]byte{}, fmt.Errorf("prizecodec: prize must be non-negative")
	}
	data := make([]byte, DataBytes)
	b := prize.Bytes()
	if len(b) > DataBytes {
		return [CodeBytes]byte{}, fmt.Errorf("prizecodec: prize exceeds %d bytes", DataBytes*8)
	}
	copy(data[DataBytes-len(b):], b)

	codeword := rsEncode(data)
	var out [CodeBytes]byte
	copy(out[:], codeword)
	return out, nil
}

// DecodePrize RS-decodes a (possibly corrupted, but within-tolerance)
// RS(48,32) block back into the original 256-bit prize.
func DecodePrize(block [CodeBytes]byte) (*big.Int, error) {
	data, err := rsDecode(block[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrizeUnrecoverable, err)
	}
	return new(big.Int).SetBytes(data), nil
}

// decimalJoin renders sequence as a comma-joined list of decimal integers,
// the exact keystream input format of spec: `","`-joined decimal(sequence).
func decimalJoin(sequence []uint64) string {
	parts := make([]string, len(sequence))
	for i, v := range sequence {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, ",")
}

// keystream derives the 32-byte one-time pad H = SHA-256(salt ||
// decimalJoin(sequence)), repeated to cover a CodeBytes-length block.
func keystream(salt []byte, sequence []uint64) [CodeBytes]byte {
	h := cryptoutil.Sha256(cryptoutil.Concat(salt, []byte(decimalJoin(sequence))))
	var pad [CodeBytes]byte
	for i := range pad {
		pad[i] = h[i%len(h)]
	}
	return pad
}

// Protect XORs block with the password-derived keystream. Unprotect is the
// same function: XOR is self-inverse.
func Protect(block [CodeBytes]byte, passwordHashSalt []byte, sequence []uint64) [CodeBytes]byte {
	pad := keystream(passwordHashSalt, sequence)
	out := cryptoutil.XorBytes(block[:], pad[:])
	var result [CodeBytes]byte
	copy(result[:], out)
	return result
}

// Unprotect reverses Protect; XOR is self-inverse so it is a plain alias.
func Unprotect(block [CodeBytes]byte, passwordHashSalt []byte, sequence []uint64) [CodeBytes]byte {
	return Protect(block, passwordHashSalt, sequence)
}
