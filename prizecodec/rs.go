package prizecodec

import "errors"

// DataBytes, ParityBytes and CodeBytes fix the code to RS(48,32): 32 prize
// bytes, 16 parity bytes, tolerating up to 8 byte errors.
const (
	DataBytes   = 32
	ParityBytes = 16
	CodeBytes   = DataBytes + ParityBytes
)

// ErrTooManyErrors is returned when the received word carries more byte
// errors than the code's 16 parity bytes can locate and correct.
var ErrTooManyErrors = errors.New("prizecodec: too many errors to correct")

var generator = buildGenerator(ParityBytes)

// buildGenerator returns g(x) = prod_{i=0}^{nsym-1} (x - alpha^i),
// highest-degree-first, the same construction the encoder divides by.
func buildGenerator(nsym int) []byte {
	g := []byte{1}
	for i := 0; i < nsym; i++ {
		g = gfPolyMul(g, []byte{1, gfExp[i]})
	}
	return g
}

// rsEncode appends ParityBytes parity bytes to a DataBytes-length message,
// returning the CodeBytes-length systematic codeword.
func rsEncode(data []byte) []byte {
	if len(data) != DataBytes {
		panic("prizecodec: rsEncode expects 32 input bytes")
	}
	padded := make([]byte, CodeBytes)
	copy(padded, data)
	_, remainder := gfPolyDiv(padded, generator)
	codeword := make([]byte, CodeBytes)
	copy(codeword, data)
	copy(codeword[DataBytes:], remainder)
	return codeword
}

// syndromes returns S_0..S_{nsym-1}, each the codeword polynomial evaluated
// at alpha^j. All-zero syndromes mean the codeword is a valid (or
// undetectably-corrupted) RS(48,32) word.
func syndromes(codeword []byte, nsym int) []byte {
	s := make([]byte, nsym)
	for j := 0; j < nsym; j++ {
		s[j] = gfPolyEval(codeword, gfExp[j])
	}
	return s
}

func syndromesAllZero(s []byte) bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}

// berlekampMassey finds the shortest linear feedback polynomial (the error
// locator, low-degree-first, constant term 1) that generates the syndrome
// sequence.
func berlekampMassey(s []byte, nsym int) []byte {
	c := make([]byte, nsym+1)
	b := make([]byte, nsym+1)
	c[0] = 1
	b[0] = 1
	l := 0
	m := 1
	lastDiscrepancy := byte(1)

	for n := 0; n < nsym; n++ {
		delta := s[n]
		for i := 1; i <= l; i++ {
			delta ^= gfMul(c[i], s[n-i])
		}
		switch {
		case delta == 0:
			m++
		case 2*l <= n:
			t := make([]byte, nsym+1)
			copy(t, c)
			coef := gfDiv(delta, lastDiscrepancy)
			for i := 0; i+m <= nsym; i++ {
				c[i+m] ^= gfMul(coef, b[i])
			}
			l = n + 1 - l
			b = t
			lastDiscrepancy = delta
			m = 1
		default:
			coef := gfDiv(delta, lastDiscrepancy)
			for i := 0; i+m <= nsym; i++ {
				c[i+m] ^= gfMul(coef, b[i])
			}
			m++
		}
	}
	return c[:l+1]
}

// polyMulLow multiplies two low-degree-first polynomials.
func polyMulLow(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b)-1)
	for i, ac := range a {
		if ac == 0 {
			continue
		}
		for j, bc := range b {
			if bc == 0 {
				continue
			}
			out[i+j] ^= gfMul(ac, bc)
		}
	}
	return out
}

// polyEvalLow evaluates a low-degree-first polynomial at z.
func polyEvalLow(p []byte, z byte) byte {
	var acc byte
	zi := byte(1)
	for _, c := range p {
		acc ^= gfMul(c, zi)
		zi = gfMul(zi, z)
	}
	return acc
}

// evalFormalDerivative evaluates Λ'(z) where Λ is low-degree-first; in
// characteristic 2 only odd-degree terms of Λ survive differentiation.
func evalFormalDerivative(lambda []byte, z byte) byte {
	var acc byte
	for j := 1; j < len(lambda); j += 2 {
		acc ^= gfMul(lambda[j], gfPow(z, j-1))
	}
	return acc
}

// rsDecode corrects up to ParityBytes/2 byte errors in a copy of codeword
// (length CodeBytes) and returns the leading DataBytes message bytes;
// codeword itself is not modified.
func rsDecode(codeword []byte) ([]byte, error) {
	if len(codeword) != CodeBytes {
		return nil, errors.New("prizecodec: rsDecode expects 48 input bytes")
	}
	s := syndromes(codeword, ParityBytes)
	if syndromesAllZero(s) {
		out := make([]byte, DataBytes)
		copy(out, codeword[:DataBytes])
		return out, nil
	}

	lambda := berlekampMassey(s, ParityBytes)
	numErrors := len(lambda) - 1
	if numErrors == 0 || numErrors > ParityBytes/2 {
		return nil, ErrTooManyErrors
	}

	// Chien search: error at polynomial degree i iff Λ(alpha^-i) == 0.
	var errDegrees []int
	for i := 0; i < CodeBytes; i++ {
		if polyEvalLow(lambda, gfInverse(gfExp[i])) == 0 {
			errDegrees = append(errDegrees, i)
		}
	}
	if len(errDegrees) != numErrors {
		return nil, ErrTooManyErrors
	}

	omegaFull := polyMulLow(s, lambda)
	omega := omegaFull
	if len(omega) > ParityBytes {
		omega = omega[:ParityBytes]
	}

	corrected := make([]byte, CodeBytes)
	copy(corrected, codeword)
	for _, i := range errDegrees {
		xInv := gfInverse(gfExp[i])
		numerator := gfMul(gfExp[i], polyEvalLow(omega, xInv))
		denom := evalFormalDerivative(lambda, xInv)
		if denom == 0 {
			return nil, ErrTooManyErrors
		}
		magnitude := gfDiv(numerator, denom)
		pos := CodeBytes - 1 - i
		corrected[pos] ^= magnitude
	}

	if !syndromesAllZero(syndromes(corrected, ParityBytes)) {
		return nil, ErrTooManyErrors
	}

	out := make([]byte, DataBytes)
	copy(out, corrected[:DataBytes])
	return out, nil
}
