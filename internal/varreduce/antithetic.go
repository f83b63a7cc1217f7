// Package varreduce implements the optional variance-reduction transforms
// applied to generator output before risk estimation.
package varreduce

import "gonum.org/v1/gonum/mat"

// Antithetic returns the vertical concatenation of z and -z.
// z must be in standard (uncorrelated, zero-mean) space; the mean/correlation
// mapping happens afterwards, so every pair stays negatively correlated.
func Antithetic(z mat.Matrix) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(2*r, c, nil)

	top := out.Slice(0, r, 0, c).(*mat.Dense)
	top.Copy(z)

	bottom := out.Slice(r, 2*r, 0, c).(*mat.Dense)
	bottom.Scale(-1, z)

	return out
}

// AntitheticHalf returns how many base rows to draw so that the antithetic
// set covers n rows. Odd n draws one extra pair; callers trim the last row.
func AntitheticHalf(n int) int {
	return (n + 1) / 2
}
