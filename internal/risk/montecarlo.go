package risk

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/internal/varreduce"
)

// Sampling 시나리오 샘플링 설정
type Sampling struct {
	Mode           scenario.Mode `json:"mode"`
	NumSims        int           `json:"num_sims"`
	Antithetic     bool          `json:"antithetic,omitempty"`
	ControlVariate bool          `json:"control_variate,omitempty"`
}

// Simulate runs one generate → project → (adjust) → estimate pass.
// ⭐ SSOT: backtest windows, bootstrap repetitions and experiment runs all
// go through here, so they share one pipeline and one set of conventions.
func Simulate(gen *scenario.Generator, mean []float64, cov mat.Symmetric, weights []float64, s Sampling, alpha float64) (Result, error) {
	port, err := Sample(gen, mean, cov, weights, s)
	if err != nil {
		return Result{}, err
	}
	return Estimate(port, alpha)
}

// Sample simulated portfolio returns, one per scenario.
func Sample(gen *scenario.Generator, mean []float64, cov mat.Symmetric, weights []float64, s Sampling) ([]float64, error) {
	var (
		scen *mat.Dense
		err  error
	)
	if s.Antithetic {
		scen, err = gen.GenerateAntithetic(mean, cov, s.NumSims, s.Mode)
	} else {
		scen, err = gen.Generate(mean, cov, s.NumSims, s.Mode)
	}
	if err != nil {
		return nil, err
	}

	port, err := scenario.PortfolioReturns(scen, weights)
	if err != nil {
		return nil, err
	}

	if s.ControlVariate {
		c, cMean := varreduce.EqualWeightControl(scen, mean)
		adj, err := varreduce.ControlVariate(port, c, cMean)
		if err != nil {
			return nil, fmt.Errorf("control variate: %w", err)
		}
		port = adj.Adjusted
	}

	return port, nil
}
