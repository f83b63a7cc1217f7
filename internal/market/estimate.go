package market

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Params distribution estimate of one window.
type Params struct {
	Mean []float64
	Cov  *mat.SymDense
}

// Dim number of assets.
func (p Params) Dim() int { return len(p.Mean) }

// Estimate returns column means and the unbiased (n-1) sample covariance of
// a window. Positive definiteness is not checked here; the generator's
// Cholesky factorization decides.
func Estimate(window mat.Matrix) (Params, error) {
	n, d := window.Dims()
	if n < 2 || d == 0 {
		return Params{}, fmt.Errorf("%w: %d observations × %d assets", ErrShortHistory, n, d)
	}

	mean := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, window)
		mean[j] = stat.Mean(col, nil)
	}

	cov := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(cov, window, nil)

	return Params{Mean: mean, Cov: cov}, nil
}

// WeightSumTolerance deviation of Σw from 1 that triggers a warning.
const WeightSumTolerance = 1e-6

// ValidateWeights checks weights against the asset count. A length mismatch
// or non-finite weight is an error; a sum away from 1 only produces a
// warning since the math does not require it.
func ValidateWeights(weights []float64, d int) ([]string, error) {
	if len(weights) != d {
		return nil, fmt.Errorf("%w: %d weights for %d assets", ErrWeightMismatch, len(weights), d)
	}

	var sum float64
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is %v", ErrWeightMismatch, i, w)
		}
		sum += w
	}

	var warnings []string
	if math.Abs(sum-1) > WeightSumTolerance {
		warnings = append(warnings, fmt.Sprintf("weights sum to %.6f, not 1", sum))
	}
	return warnings, nil
}
