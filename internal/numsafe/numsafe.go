// Package numsafe keeps log-likelihood terms finite.
//
// ⭐ SSOT: every likelihood-ratio test clamps probabilities and counts here,
// with a single epsilon, instead of patching log(0) at each call site.
package numsafe

import "math"

// DefaultEpsilon substitutes zero counts and bounds probabilities away from 0 and 1.
// It is a numerical-stability parameter only; Guard lets callers override it.
const DefaultEpsilon = 1e-10

// Guard applies one epsilon uniformly.
type Guard struct {
	Epsilon float64
}

// Default returns a Guard using DefaultEpsilon.
func Default() Guard {
	return Guard{Epsilon: DefaultEpsilon}
}

func (g Guard) eps() float64 {
	if g.Epsilon <= 0 || g.Epsilon >= 0.5 || math.IsNaN(g.Epsilon) {
		return DefaultEpsilon
	}
	return g.Epsilon
}

// Prob clamps p into [ε, 1-ε].
func (g Guard) Prob(p float64) float64 {
	e := g.eps()
	if math.IsNaN(p) || p < e {
		return e
	}
	if p > 1-e {
		return 1 - e
	}
	return p
}

// Count replaces a zero count with ε.
func (g Guard) Count(k float64) float64 {
	if k <= 0 {
		return g.eps()
	}
	return k
}

// XLogP returns n·ln(p) with p clamped; n = 0 contributes nothing.
func (g Guard) XLogP(n, p float64) float64 {
	if n == 0 {
		return 0
	}
	return n * math.Log(g.Prob(p))
}
