package varreduce

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aegis-risklab/internal/riskerr"
)

var (
	ErrEmptySample    = riskerr.New(riskerr.ErrData, "control variate: empty sample")
	ErrLengthMismatch = riskerr.New(riskerr.ErrData, "control variate: sample and control lengths differ")
)

// ControlResult holds the adjusted sample and the estimated coefficient.
type ControlResult struct {
	Adjusted []float64 `json:"-"`
	Beta     float64   `json:"beta"`
}

// ControlVariate adjusts x with a control c of known mean cMean:
//
//	β  = Cov(X, C) / Var(C)
//	X' = X - β·(C - cMean)
//
// β is estimated from the same realized sample (unbiased covariance and
// variance, n-1), so the adjusted sample carries a finite-sample bias in
// exchange for lower variance. A constant control (Var(C)=0) gives β=0.
func ControlVariate(x, c []float64, cMean float64) (ControlResult, error) {
	if len(x) == 0 {
		return ControlResult{}, ErrEmptySample
	}
	if len(x) != len(c) {
		return ControlResult{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(x), len(c))
	}

	var beta float64
	if len(x) > 1 {
		if v := stat.Variance(c, nil); v > 0 {
			beta = stat.Covariance(x, c, nil) / v
		}
	}

	adjusted := make([]float64, len(x))
	for i := range x {
		adjusted[i] = x[i] - beta*(c[i]-cMean)
	}

	return ControlResult{Adjusted: adjusted, Beta: beta}, nil
}

// EqualWeightControl returns the equally weighted portfolio return of every
// scenario row and its known mean (the average of the asset means).
//
// Using the target portfolio return itself as its own control gives β = 1
// and collapses the sample onto cMean, so the equal-weight portfolio is used
// instead: strongly correlated with the target, with a mean known exactly.
// For an equal-weight target the adjustment still degenerates.
func EqualWeightControl(scenarios mat.Matrix, mean []float64) ([]float64, float64) {
	n, d := scenarios.Dims()
	w := 1.0 / float64(d)

	c := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < d; j++ {
			s += scenarios.At(i, j)
		}
		c[i] = s * w
	}

	var cMean float64
	for _, m := range mean {
		cMean += m * w
	}
	return c, cMean
}
