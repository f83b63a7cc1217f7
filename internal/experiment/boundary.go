package experiment

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/scenario"
)

// boundaryKey separates boundary streams from the other experiments.
const boundaryKey = 0x626f756e64617279 // "boundary"

// tiledCorrelation pairwise correlation of assets added beyond the base set.
const tiledCorrelation = 0.3

// Axis problem property a boundary sweep varies.
type Axis string

const (
	AxisDimension   Axis = "dimension"   // asset count
	AxisVolatility  Axis = "volatility"  // covariance multiplier
	AxisCorrelation Axis = "correlation" // uniform pairwise correlation
)

func (a Axis) key() uint64 {
	switch a {
	case AxisDimension:
		return 1
	case AxisVolatility:
		return 2
	default:
		return 3
	}
}

// BoundaryConfig 경계 조건 실험 설정
type BoundaryConfig struct {
	Problem // base problem the synthetic ones are derived from

	Dimensions   []int           // asset counts, e.g. 2 .. 50
	VolScales    []float64       // covariance multipliers
	Correlations []float64       // in [0, 1)
	Modes        []scenario.Mode // first mode is the efficiency baseline
	NumSims      int             // default 10000
	Runs         int             // default 50

	// OnStep is called after each (axis value, mode) cell.
	OnStep func(done, total int)
}

// DefaultBoundaryConfig returns the standard sweep around p.
func DefaultBoundaryConfig(p Problem) BoundaryConfig {
	return BoundaryConfig{
		Problem:      p,
		Dimensions:   []int{2, 3, 5, 10, 15, 20, 30, 50},
		VolScales:    []float64{0.5, 1, 1.5, 2, 3},
		Correlations: []float64{0.1, 0.3, 0.5, 0.7, 0.9},
		Modes:        []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true), scenario.Halton(true)},
		NumSims:      10000,
		Runs:         50,
	}
}

func (c BoundaryConfig) validate() error {
	if len(c.Mean) == 0 || c.Cov == nil || c.Cov.SymmetricDim() != len(c.Mean) {
		return fmt.Errorf("%w: base problem needs a mean and a matching covariance", ErrInvalidConfig)
	}
	if len(c.Dimensions)+len(c.VolScales)+len(c.Correlations) == 0 {
		return fmt.Errorf("%w: nothing to sweep", ErrInvalidConfig)
	}
	for _, d := range c.Dimensions {
		if d < 1 {
			return fmt.Errorf("%w: dimension %d", ErrInvalidConfig, d)
		}
	}
	for _, s := range c.VolScales {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("%w: volatility scale %v", ErrInvalidConfig, s)
		}
	}
	for _, rho := range c.Correlations {
		if !(rho >= 0 && rho < 1) {
			return fmt.Errorf("%w: correlation %v outside [0, 1)", ErrInvalidConfig, rho)
		}
	}
	if len(c.Modes) == 0 {
		return fmt.Errorf("%w: need at least one mode", ErrInvalidConfig)
	}
	for _, m := range c.Modes {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if c.NumSims < 1 || c.Runs < 2 {
		return fmt.Errorf("%w: need num_sims >= 1 and runs >= 2", ErrInvalidConfig)
	}
	return nil
}

// BoundaryRow one mode at one point of one axis.
type BoundaryRow struct {
	Axis  Axis          `json:"axis"`
	Value float64       `json:"value"`
	Dim   int           `json:"dim"`
	Mode  scenario.Mode `json:"mode"`
	Stats Stats         `json:"stats"`

	// baseline VaR std / this VaR std; 1 for the baseline itself
	Efficiency float64 `json:"efficiency"`
}

// Boundary sweeps dimension, volatility level and correlation level of a
// synthetic problem and reports how each mode's VaR spread compares to the
// first mode at every point.
//
// Dimension points keep the first d base assets, or tile the base mean and
// give every asset the average base variance with pairwise correlation 0.3
// once d exceeds the base set. Volatility points multiply the base
// covariance. Correlation points keep the base variances under a uniform
// correlation. Every synthetic problem holds an equal-weight portfolio.
func (r *Runner) Boundary(ctx context.Context, cfg BoundaryConfig) ([]BoundaryRow, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	type point struct {
		axis  Axis
		value float64
		p     Problem
	}
	var points []point
	for _, d := range cfg.Dimensions {
		points = append(points, point{AxisDimension, float64(d), tiled(cfg.Problem, d)})
	}
	for _, s := range cfg.VolScales {
		points = append(points, point{AxisVolatility, s, scaled(cfg.Problem, s)})
	}
	for _, rho := range cfg.Correlations {
		points = append(points, point{AxisCorrelation, rho, uniformCorrelation(cfg.Problem, rho)})
	}

	total := len(points) * len(cfg.Modes)
	rows := make([]BoundaryRow, 0, total)

	for _, pt := range points {
		var base Stats
		for i, mode := range cfg.Modes {
			s := risk.Sampling{Mode: mode, NumSims: cfg.NumSims}
			results, elapsed, err := r.repeat(ctx, pt.p, s, cfg.Runs,
				boundaryKey, pt.axis.key(), math.Float64bits(pt.value), mode.StreamKey())
			if err != nil {
				return nil, fmt.Errorf("%s=%v %s: %w", pt.axis, pt.value, mode, err)
			}

			st := summarize(results, elapsed)
			if i == 0 {
				base = st
			}
			rows = append(rows, BoundaryRow{
				Axis:       pt.axis,
				Value:      pt.value,
				Dim:        len(pt.p.Mean),
				Mode:       mode,
				Stats:      st,
				Efficiency: efficiency(base.VaRStd, st.VaRStd),
			})

			if cfg.OnStep != nil {
				cfg.OnStep(len(rows), total)
			}
		}

		r.logger.WithFields(map[string]interface{}{
			"axis":  string(pt.axis),
			"value": pt.value,
			"dim":   len(pt.p.Mean),
		}).Debug("Boundary point done")
	}

	return rows, nil
}

// efficiency baseline/std; 0 when this mode has no spread.
func efficiency(baseline, std float64) float64 {
	if std == 0 {
		return 0
	}
	return baseline / std
}

// tiled d-asset problem: the first d base assets, or the tiled base mean
// with an average-variance, 0.3-correlated covariance when d is larger.
func tiled(base Problem, d int) Problem {
	k := len(base.Mean)
	mean := make([]float64, d)
	cov := mat.NewSymDense(d, nil)

	if d <= k {
		copy(mean, base.Mean[:d])
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				cov.SetSym(i, j, base.Cov.At(i, j))
			}
		}
		return synthetic(base, mean, cov)
	}

	var v float64
	for i := 0; i < k; i++ {
		v += base.Cov.At(i, i)
	}
	v /= float64(k)

	for i := 0; i < d; i++ {
		mean[i] = base.Mean[i%k]
		cov.SetSym(i, i, v)
		for j := i + 1; j < d; j++ {
			cov.SetSym(i, j, tiledCorrelation*v)
		}
	}
	return synthetic(base, mean, cov)
}

// scaled base covariance multiplied by s.
func scaled(base Problem, s float64) Problem {
	d := len(base.Mean)
	cov := mat.NewSymDense(d, nil)
	cov.ScaleSym(s, base.Cov)
	return synthetic(base, append([]float64(nil), base.Mean...), cov)
}

// uniformCorrelation base variances with correlation rho between every pair.
func uniformCorrelation(base Problem, rho float64) Problem {
	d := len(base.Mean)
	vol := make([]float64, d)
	for i := range vol {
		vol[i] = math.Sqrt(base.Cov.At(i, i))
	}

	cov := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		cov.SetSym(i, i, vol[i]*vol[i])
		for j := i + 1; j < d; j++ {
			cov.SetSym(i, j, rho*vol[i]*vol[j])
		}
	}
	return synthetic(base, append([]float64(nil), base.Mean...), cov)
}

// synthetic equal-weight problem at the base alpha.
func synthetic(base Problem, mean []float64, cov *mat.SymDense) Problem {
	w := make([]float64, len(mean))
	for i := range w {
		w[i] = 1 / float64(len(mean))
	}
	return Problem{Mean: mean, Cov: cov, Weights: w, Alpha: base.Alpha}
}
