package prizecodec

// GF(256) arithmetic over the primitive polynomial 0x11d, the same field
// and generator used by the original_source implementation's RS codec, so
// that a blob encoded by one implementation decodes correctly by the
// other.
const (
	gfPrimitivePoly = 0x11d
	gfFieldSize     = 256
)

// gfExp and gfLog are filled by a package-level initializer (not init) so
// that package-level values built from them, such as the RS generator, are
// initialized after the tables.
var gfExp, gfLog = buildGFTables()

func buildGFTables() (exp [2 * gfFieldSize]byte, lg [gfFieldSize]int) {
	x := 1
	for i := 0; i < gfFieldSize-1; i++ {
		exp[i] = byte(x)
		lg[x] = i
		x <<= 1
		if x >= gfFieldSize {
			x ^= gfPrimitivePoly
		}
	}
	for i := gfFieldSize - 1; i < 2*gfFieldSize; i++ {
		exp[i] = exp[i-(gfFieldSize-1)]
	}
	return exp, lg
}

func gfAdd(a, b byte) byte { return a ^ b }

func gfSub(a, b byte) byte { return a ^ b }

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[gfLog[a]+gfLog[b]]
}

func gfDiv(a, b byte) byte {
	if b == 0 {
		panic("prizecodec: gf division by zero")
	}
	if a == 0 {
		return 0
	}
	return gfExp[(gfLog[a]+(gfFieldSize-1)-gfLog[b])%(gfFieldSize-1)]
}

func gfPow(a byte, power int) byte {
	if a == 0 {
		if power == 0 {
			return 1
		}
		return 0
	}
	e := (gfLog[a] * power) % (gfFieldSize - 1)
	if e < 0 {
		e += gfFieldSize - 1
	}
	return gfExp[e]
}

func gfInverse(a byte) byte {
	return gfExp[(gfFieldSize-1)-gfLog[a]]
}

// gfPolyMul multiplies two polynomials given highest-degree-first.
func gfPolyMul(p, q []byte) []byte {
	out := make([]byte, len(p)+len(q)-1)
	for i, pc := range p {
		if pc == 0 {
			continue
		}
		for j, qc := range q {
			if qc == 0 {
				continue
			}
			out[i+j] ^= gfMul(pc, qc)
		}
	}
	return out
}

// gfPolyEval evaluates polynomial p (highest-degree-first) at x.
func gfPolyEval(p []byte, x byte) byte {
	y := p[0]
	for i := 1; i < len(p); i++ {
		y = gfMul(y, x) ^ p[i]
	}
	return y
}

// gfPolyScale multiplies every coefficient of p by scalar x.
func gfPolyScale(p []byte, x byte) []byte {
	out := make([]byte, len(p))
	for i, c := range p {
		out[i] = gfMul(c, x)
	}
	return out
}

// gfPolyAdd adds (XORs) two polynomials, right-aligned.
func gfPolyAdd(p, q []byte) []byte {
	n := len(p)
	if len(q) > n {
		n = len(q)
	}
	out := make([]byte, n)
	copy(out[n-len(p):], p)
	for i, c := range q {
		out[n-len(q)+i] ^= c
	}
	return out
}

// gfPolyDiv performs polynomial long division, returning (quotient,
// remainder), both highest-degree-first, remainder length len(divisor)-1.
func gfPolyDiv(dividend, divisor []byte) (quotient, remainder []byte) {
	msg := make([]byte, len(dividend))
	copy(msg, dividend)
	for i := 0; i < len(dividend)-len(divisor)+1; i++ {
		coef := msg[i]
		if coef == 0 {
			continue
		}
		for j := 1; j < len(divisor); j++ {
			if divisor[j] == 0 {
				continue
			}
			msg[i+j] ^= gfMul(divisor[j], coef)
		}
	}
	split := len(dividend) - len(divisor) + 1
	return msg[:split], msg[split:]
}
