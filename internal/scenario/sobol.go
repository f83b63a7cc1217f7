package scenario

import (
	"math/bits"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
)

const sobolBits = 32

// sobolSeed stream of the generated initial direction numbers ("sobol").
const sobolSeed = 0x736f626f6c

// sobolPoly primitive polynomial degree s, coefficient bits a, initial m_k.
type sobolPoly struct {
	s int
	a uint32
	m []uint32
}

// Joe & Kuo (2008) new-joe-kuo-6.21201, dimensions 2..21.
// Dimension 1 is the van der Corput sequence in base 2. Higher dimensions
// use the next primitive polynomials in the same order with initial m_k
// drawn from a fixed per-dimension stream.
var sobolPolys = []sobolPoly{
	{1, 0, []uint32{1}},
	{2, 1, []uint32{1, 3}},
	{3, 1, []uint32{1, 3, 1}},
	{3, 2, []uint32{1, 1, 1}},
	{4, 1, []uint32{1, 1, 3, 3}},
	{4, 4, []uint32{1, 3, 5, 13}},
	{5, 2, []uint32{1, 1, 5, 5, 17}},
	{5, 4, []uint32{1, 1, 5, 5, 5}},
	{5, 7, []uint32{1, 1, 7, 11, 19}},
	{5, 11, []uint32{1, 1, 5, 1, 1}},
	{5, 13, []uint32{1, 1, 1, 3, 11}},
	{5, 14, []uint32{1, 3, 5, 5, 31}},
	{6, 1, []uint32{1, 3, 3, 9, 7, 49}},
	{6, 13, []uint32{1, 1, 1, 15, 21, 21}},
	{6, 16, []uint32{1, 3, 1, 13, 27, 49}},
	{6, 19, []uint32{1, 1, 1, 15, 7, 5}},
	{6, 22, []uint32{1, 3, 1, 15, 13, 25}},
	{6, 25, []uint32{1, 1, 5, 5, 19, 61}},
	{7, 1, []uint32{1, 3, 7, 11, 23, 15, 103}},
	{7, 4, []uint32{1, 3, 7, 13, 13, 15, 69}},
}

// primitives primitive polynomials over GF(2) in (degree, coefficient)
// order, enumerated one degree at a time as wider dimensions are requested.
var primitives struct {
	sync.Mutex
	list   []sobolPoly
	degree int
}

// primitivePoly i-th primitive polynomial (0-based); m is left empty.
func primitivePoly(i int) sobolPoly {
	primitives.Lock()
	defer primitives.Unlock()

	for len(primitives.list) <= i {
		primitives.degree++
		s := primitives.degree
		if s >= sobolBits {
			panic("scenario: sobol dimension out of range")
		}
		for a := uint32(0); a < 1<<(s-1); a++ {
			if isPrimitive(uint64(1)<<s|uint64(a)<<1|1, s) {
				primitives.list = append(primitives.list, sobolPoly{s: s, a: a})
			}
		}
	}
	return primitives.list[i]
}

// isPrimitive reports whether x generates the multiplicative group of
// GF(2)[x]/p, i.e. x has order 2^s - 1 modulo the degree-s polynomial p.
func isPrimitive(p uint64, s int) bool {
	order := uint64(1)<<s - 1
	x := polyMulMod(2, 1, p, s)
	if polyPowMod(x, order, p, s) != 1 {
		return false
	}
	for _, q := range primeFactors(order) {
		if polyPowMod(x, order/q, p, s) == 1 {
			return false
		}
	}
	return true
}

// polyMulMod carry-less a·b mod p over GF(2); p has degree s.
func polyMulMod(a, b, p uint64, s int) uint64 {
	if a>>s&1 == 1 {
		a ^= p
	}
	var r uint64
	for b != 0 {
		if b&1 == 1 {
			r ^= a
		}
		b >>= 1
		a <<= 1
		if a>>s&1 == 1 {
			a ^= p
		}
	}
	return r
}

func polyPowMod(x, e, p uint64, s int) uint64 {
	r := uint64(1)
	for e > 0 {
		if e&1 == 1 {
			r = polyMulMod(r, x, p, s)
		}
		x = polyMulMod(x, x, p, s)
		e >>= 1
	}
	return r
}

func primeFactors(n uint64) []uint64 {
	var out []uint64
	for q := uint64(2); q*q <= n; q++ {
		if n%q == 0 {
			out = append(out, q)
			for n%q == 0 {
				n /= q
			}
		}
	}
	if n > 1 {
		out = append(out, n)
	}
	return out
}

// sobolPolyFor polynomial and initial direction numbers of dimension j >= 1.
func sobolPolyFor(j int) sobolPoly {
	if j-1 < len(sobolPolys) {
		return sobolPolys[j-1]
	}

	p := primitivePoly(j - 1)
	rng := rand.New(rand.NewPCG(uint64(j), sobolSeed))
	p.m = make([]uint32, p.s)
	for k := 1; k <= p.s; k++ {
		// odd, below 2^k
		p.m[k-1] = uint32(rng.Uint64N(1<<(k-1)))*2 + 1
	}
	return p
}

// sobolDirections returns the 32 direction numbers of dimension j (0-based).
func sobolDirections(j int) [sobolBits]uint32 {
	var v [sobolBits]uint32
	if j == 0 {
		for k := 0; k < sobolBits; k++ {
			v[k] = 1 << (sobolBits - 1 - k)
		}
		return v
	}

	p := sobolPolyFor(j)
	for k := 0; k < sobolBits; k++ {
		if k < p.s {
			v[k] = p.m[k] << (sobolBits - 1 - k)
			continue
		}
		v[k] = v[k-p.s] ^ (v[k-p.s] >> p.s)
		for l := 1; l < p.s; l++ {
			if (p.a>>(p.s-1-l))&1 == 1 {
				v[k] ^= v[k-l]
			}
		}
	}
	return v
}

// sobolPoints returns n points of the d-dimensional Sobol sequence in Gray-code
// order. Scrambled sequences apply a linear matrix scramble (random lower
// triangular binary matrix with unit diagonal, per dimension) followed by a
// random digital shift, and start at index 0; unscrambled sequences skip the
// origin, whose normal quantile is -Inf.
func sobolPoints(n, d int, scramble bool, rng *rand.Rand) *mat.Dense {
	dirs := make([][sobolBits]uint32, d)
	shift := make([]uint32, d)
	for j := 0; j < d; j++ {
		dirs[j] = sobolDirections(j)
		if scramble {
			linearScramble(&dirs[j], rng)
			shift[j] = rng.Uint32()
		}
	}

	const scale = 1.0 / (1 << sobolBits)
	out := mat.NewDense(n, d, nil)
	x := make([]uint32, d)

	skip := 0
	if !scramble {
		skip = 1
	}

	for i := 0; i < n+skip; i++ {
		if i > 0 {
			c := rightmostZero(uint64(i - 1))
			for j := 0; j < d; j++ {
				x[j] ^= dirs[j][c]
			}
		}
		if i < skip {
			continue
		}
		row := out.RawRowView(i - skip)
		for j := 0; j < d; j++ {
			if scramble {
				row[j] = (float64(x[j]^shift[j]) + 0.5) * scale
			} else {
				row[j] = float64(x[j]) * scale
			}
		}
	}

	return out
}

// linearScramble left-multiplies the generator matrix of one dimension by a
// random lower triangular matrix L. Digit i (bit 31-i) of every direction
// number becomes the parity of L's row i against it; row i has the diagonal
// bit set and random bits on the more significant digits.
func linearScramble(v *[sobolBits]uint32, rng *rand.Rand) {
	var rows [sobolBits]uint32
	for i := 0; i < sobolBits; i++ {
		above := ^uint32(0) << (sobolBits - i) // digits 0..i-1; empty for i = 0
		rows[i] = rng.Uint32()&above | 1<<(sobolBits-1-i)
	}
	for k := range v {
		var w uint32
		for i, row := range rows {
			w |= uint32(bits.OnesCount32(row&v[k])&1) << (sobolBits - 1 - i)
		}
		v[k] = w
	}
}

// rightmostZero index of the lowest zero bit of i.
func rightmostZero(i uint64) int {
	c := 0
	for i&1 == 1 {
		i >>= 1
		c++
	}
	return c
}
