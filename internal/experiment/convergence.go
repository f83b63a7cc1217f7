package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/scenario"
)

// referenceKey separates the reference streams from the per-mode ones.
const referenceKey = 0x7265666572656e63 // "referenc"

// ConvergenceConfig 수렴 실험 설정
type ConvergenceConfig struct {
	Problem
	SimCounts     []int           // e.g. 1000, 5000, 10000, 50000
	Modes         []scenario.Mode // compared modes
	Runs          int             // repetitions per (n, mode), default 50
	ReferenceSims int             // per reference run, default 100000
	ReferenceRuns int             // pooled reference runs, default 5

	// OnStep is called after each (n, mode) point.
	OnStep func(done, total int)
}

// DefaultConvergenceConfig returns the standard grid for p.
func DefaultConvergenceConfig(p Problem) ConvergenceConfig {
	return ConvergenceConfig{
		Problem:       p,
		SimCounts:     []int{1000, 5000, 10000, 50000},
		Modes:         []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true), scenario.Halton(true)},
		Runs:          50,
		ReferenceSims: 100000,
		ReferenceRuns: 5,
	}
}

func (c ConvergenceConfig) validate() error {
	if len(c.SimCounts) == 0 || len(c.Modes) == 0 {
		return fmt.Errorf("%w: need at least one simulation count and one mode", ErrInvalidConfig)
	}
	for _, n := range c.SimCounts {
		if n < 1 {
			return fmt.Errorf("%w: simulation count %d", ErrInvalidConfig, n)
		}
	}
	for _, m := range c.Modes {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	if c.Runs < 2 {
		return fmt.Errorf("%w: runs must be >= 2, got %d", ErrInvalidConfig, c.Runs)
	}
	if c.ReferenceSims < 1 || c.ReferenceRuns < 1 {
		return fmt.Errorf("%w: reference needs >= 1 run of >= 1 scenario", ErrInvalidConfig)
	}
	return nil
}

// Reference large-sample estimate of one distribution family.
type Reference struct {
	Mode scenario.Mode `json:"mode"` // pseudorandom mode that produced it
	VaR  float64       `json:"var"`
	CVaR float64       `json:"cvar"`
}

// ConvergencePoint accuracy of one mode at one scenario count.
type ConvergencePoint struct {
	NumSims   int           `json:"num_sims"`
	Mode      scenario.Mode `json:"mode"`
	Reference Reference     `json:"reference"`
	Stats     Stats         `json:"stats"`
	VaRRMSE   float64       `json:"var_rmse"`
	CVaRRMSE  float64       `json:"cvar_rmse"`
}

// ConvergenceResult reference values plus one point per (n, mode).
type ConvergenceResult struct {
	References []Reference        `json:"references"` // one per distribution family, in mode order
	Points     []ConvergencePoint `json:"points"`
}

// Reference estimate scoring mode, false if none was computed.
func (c *ConvergenceResult) Reference(mode scenario.Mode) (Reference, bool) {
	want := mode.Pseudorandom()
	for _, ref := range c.References {
		if ref.Mode == want {
			return ref, true
		}
	}
	return Reference{}, false
}

// Convergence measures how VaR/CVaR error shrinks with the scenario count.
// Each mode is scored against the reference of its distribution family:
// ReferenceRuns pseudorandom runs of ReferenceSims scenarios drawn from the
// same distribution (normal or Student-t with the same df), pooled into one
// sample.
func (r *Runner) Convergence(ctx context.Context, cfg ConvergenceConfig) (*ConvergenceResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	out := &ConvergenceResult{}
	for _, mode := range cfg.Modes {
		if _, ok := out.Reference(mode); ok {
			continue
		}
		ref, err := r.reference(cfg, mode.Pseudorandom())
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", mode.Pseudorandom(), err)
		}
		out.References = append(out.References, ref)

		r.logger.WithFields(map[string]interface{}{
			"family":         ref.Mode.String(),
			"reference_var":  ref.VaR,
			"reference_cvar": ref.CVaR,
		}).Info("Reference estimate computed")
	}

	total := len(cfg.SimCounts) * len(cfg.Modes)

	for _, n := range cfg.SimCounts {
		for _, mode := range cfg.Modes {
			ref, _ := out.Reference(mode)
			s := risk.Sampling{Mode: mode, NumSims: n}
			results, elapsed, err := r.repeat(ctx, cfg.Problem, s, cfg.Runs, uint64(n), mode.StreamKey())
			if err != nil {
				return nil, fmt.Errorf("n=%d %s: %w", n, mode, err)
			}

			vars, cvars := split(results)
			pt := ConvergencePoint{
				NumSims:   n,
				Mode:      mode,
				Reference: ref,
				Stats:     summarize(results, elapsed),
				VaRRMSE:   rmse(vars, ref.VaR),
				CVaRRMSE:  rmse(cvars, ref.CVaR),
			}
			out.Points = append(out.Points, pt)

			r.logger.WithFields(map[string]interface{}{
				"num_sims": n,
				"mode":     mode.String(),
				"var_rmse": pt.VaRRMSE,
			}).Debug("Convergence point")

			if cfg.OnStep != nil {
				cfg.OnStep(len(out.Points), total)
			}
		}
	}

	return out, nil
}

func (r *Runner) reference(cfg ConvergenceConfig, mode scenario.Mode) (Reference, error) {
	pooled := make([]float64, 0, cfg.ReferenceRuns*cfg.ReferenceSims)
	s := risk.Sampling{Mode: mode, NumSims: cfg.ReferenceSims}

	for i := 0; i < cfg.ReferenceRuns; i++ {
		gen := scenario.NewGenerator(r.seed, scenario.DeriveStream(referenceKey, uint64(i), mode.StreamKey()))
		port, err := risk.Sample(gen, cfg.Mean, cfg.Cov, cfg.Weights, s)
		if err != nil {
			return Reference{}, err
		}
		pooled = append(pooled, port...)
	}

	res, err := risk.Estimate(pooled, cfg.Alpha)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Mode: mode, VaR: res.VaR, CVaR: res.CVaR}, nil
}

func rmse(values []float64, ref float64) float64 {
	var ss float64
	for _, v := range values {
		ss += (v - ref) * (v - ref)
	}
	return math.Sqrt(ss / float64(len(values)))
}
