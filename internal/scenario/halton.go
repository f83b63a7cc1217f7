package scenario

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"
)

// MaxHaltonDim limit of gonum's randomized Halton construction.
const MaxHaltonDim = 1000

// haltonPoints returns n points of the d-dimensional Halton sequence.
// Scrambled points use Owen's randomized Halton (gonum samplemv) driven by src;
// unscrambled points are plain radical inverses starting at index 1.
func haltonPoints(n, d int, scramble bool, src rand.Source) *mat.Dense {
	out := mat.NewDense(n, d, nil)
	if scramble {
		h := samplemv.Halton{
			Kind: samplemv.Owen,
			Q:    unitCube{},
			Src:  src,
		}
		h.Sample(out)
		return out
	}

	primes := firstPrimes(d)
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j, b := range primes {
			row[j] = radicalInverse(uint64(i+1), b)
		}
	}
	return out
}

// unitCube is the identity quantile on [0,1]^d; the normal or Student-t
// mapping is applied afterwards in Generator.base.
type unitCube struct{}

func (unitCube) Quantile(x, p []float64) []float64 {
	if x == nil {
		x = make([]float64, len(p))
	}
	copy(x, p)
	return x
}

func radicalInverse(i uint64, base int) float64 {
	b := uint64(base)
	inv := 1.0 / float64(base)
	f := inv
	var r float64
	for i > 0 {
		r += float64(i%b) * f
		i /= b
		f *= inv
	}
	return r
}

func firstPrimes(n int) []int {
	primes := make([]int, 0, n)
	for c := 2; len(primes) < n; c++ {
		prime := true
		for _, p := range primes {
			if p*p > c {
				break
			}
			if c%p == 0 {
				prime = false
				break
			}
		}
		if prime {
			primes = append(primes, c)
		}
	}
	return primes
}
