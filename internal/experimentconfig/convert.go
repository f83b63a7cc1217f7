package experimentconfig

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-risklab/internal/backtest"
	"github.com/wonny/aegis-risklab/internal/experiment"
	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/internal/stattest"
)

// Modes parsed simulation.modes
func (c *Config) Modes() ([]scenario.Mode, error) {
	return parseModes(c.Simulation.Modes)
}

// BaseModes parsed variance_reduction.base_modes
func (c *Config) BaseModes() ([]scenario.Mode, error) {
	return parseModes(c.VarianceReduction.BaseModes)
}

func parseModes(names []string) ([]scenario.Mode, error) {
	out := make([]scenario.Mode, 0, len(names))
	for _, n := range names {
		m, err := scenario.ParseMode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// DateRange data.start / data.end; zero values mean unbounded.
func (c *Config) DateRange() (time.Time, time.Time) {
	start, _ := parseOptionalDate(c.Data.Start)
	end, _ := parseOptionalDate(c.Data.End)
	return start, end
}

// Weights orders the holdings like assets (CSV column order). Assets
// without a holding get weight 0; a holding missing from assets is an error.
func (c *Config) Weights(assets []string) ([]float64, error) {
	index := make(map[string]int, len(assets))
	for i, a := range assets {
		index[a] = i
	}

	w := make([]float64, len(assets))
	for _, h := range c.Portfolio.Holdings {
		i, ok := index[h.Asset]
		if !ok {
			return nil, fmt.Errorf("%w: holding %q not in return table", market.ErrWeightMismatch, h.Asset)
		}
		w[i] = h.Weight
	}
	return w, nil
}

// Options statistical test options
func (c *Config) Options() stattest.Options {
	return stattest.Options{
		Significance:     c.Tests.Significance,
		Epsilon:          c.Tests.Epsilon,
		StressClusterMin: c.Tests.StressClusterMin,
	}
}

// Periods parsed stress periods
func (c *Config) Periods() ([]experiment.Period, error) {
	out := make([]experiment.Period, 0, len(c.StressPeriods))
	for _, p := range c.StressPeriods {
		period, err := experiment.NewPeriod(p.Name, p.Start, p.End)
		if err != nil {
			return nil, err
		}
		out = append(out, period)
	}
	return out, nil
}

// Sampling scenario sampling for one mode
func (c *Config) Sampling(mode scenario.Mode) risk.Sampling {
	return risk.Sampling{
		Mode:           mode,
		NumSims:        c.Simulation.NumSims,
		Antithetic:     c.Simulation.Antithetic,
		ControlVariate: c.Simulation.ControlVariate,
	}
}

// BacktestConfig engine configuration for a table with the given assets.
func (c *Config) BacktestConfig(assets []string) (backtest.Config, error) {
	modes, err := c.Modes()
	if err != nil {
		return backtest.Config{}, err
	}
	weights, err := c.Weights(assets)
	if err != nil {
		return backtest.Config{}, err
	}

	cfg := backtest.DefaultConfig()
	cfg.Alpha = c.Simulation.Alpha
	cfg.Window = c.Backtest.Window
	cfg.NumSims = c.Simulation.NumSims
	cfg.Modes = modes
	cfg.Weights = weights
	cfg.Seed = c.Simulation.Seed
	if c.Simulation.Workers > 0 {
		cfg.Workers = c.Simulation.Workers
	}
	cfg.Antithetic = c.Simulation.Antithetic
	cfg.ControlVariate = c.Simulation.ControlVariate
	return cfg, nil
}

// ConvergenceConfig convergence experiment for p; unset fields keep defaults.
func (c *Config) ConvergenceConfig(p experiment.Problem) (experiment.ConvergenceConfig, error) {
	cfg := experiment.DefaultConvergenceConfig(p)
	modes, err := c.Modes()
	if err != nil {
		return cfg, err
	}
	cfg.Modes = modes
	if len(c.Convergence.SimCounts) > 0 {
		cfg.SimCounts = append([]int(nil), c.Convergence.SimCounts...)
		cfg.Runs = c.Convergence.Runs
		cfg.ReferenceSims = c.Convergence.ReferenceSims
		cfg.ReferenceRuns = c.Convergence.ReferenceRuns
	}
	return cfg, nil
}

// VarianceReductionConfig variance-reduction experiment for p.
func (c *Config) VarianceReductionConfig(p experiment.Problem) (experiment.VarianceReductionConfig, error) {
	cfg := experiment.DefaultVarianceReductionConfig(p)
	if len(c.VarianceReduction.BaseModes) == 0 {
		return cfg, nil
	}
	modes, err := c.BaseModes()
	if err != nil {
		return cfg, err
	}
	cfg.BaseModes = modes
	cfg.NumSims = c.VarianceReduction.NumSims
	cfg.Runs = c.VarianceReduction.Runs
	return cfg, nil
}

// BoundaryConfig boundary sweep for p over the simulation modes.
func (c *Config) BoundaryConfig(p experiment.Problem) (experiment.BoundaryConfig, error) {
	cfg := experiment.DefaultBoundaryConfig(p)
	modes, err := c.Modes()
	if err != nil {
		return cfg, err
	}
	cfg.Modes = modes

	b := c.Boundary
	if len(b.Dimensions) > 0 {
		cfg.Dimensions = append([]int(nil), b.Dimensions...)
	}
	if len(b.VolScales) > 0 {
		cfg.VolScales = append([]float64(nil), b.VolScales...)
	}
	if len(b.Correlations) > 0 {
		cfg.Correlations = append([]float64(nil), b.Correlations...)
	}
	if b.NumSims > 0 {
		cfg.NumSims = b.NumSims
	}
	if b.Runs > 0 {
		cfg.Runs = b.Runs
	}
	return cfg, nil
}
