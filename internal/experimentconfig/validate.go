package experimentconfig

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap puts every validation failure in the configuration category.
func (e ValidationError) Unwrap() error {
	return riskerr.ErrConfiguration
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.ExperimentID == "" {
		return ValidationError{"meta.experiment_id", "required"}
	}

	// === Data ===
	if cfg.Data.ReturnsCSV == "" {
		return ValidationError{"data.returns_csv", "required"}
	}
	start, err := parseOptionalDate(cfg.Data.Start)
	if err != nil {
		return ValidationError{"data.start", err.Error()}
	}
	end, err := parseOptionalDate(cfg.Data.End)
	if err != nil {
		return ValidationError{"data.end", err.Error()}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return ValidationError{"data", "end must not be before start"}
	}

	// === Portfolio ===
	if len(cfg.Portfolio.Holdings) == 0 {
		return ValidationError{"portfolio.holdings", "required"}
	}
	seen := make(map[string]bool, len(cfg.Portfolio.Holdings))
	for i, h := range cfg.Portfolio.Holdings {
		field := fmt.Sprintf("portfolio.holdings[%d]", i)
		if h.Asset == "" {
			return ValidationError{field + ".asset", "required"}
		}
		if seen[h.Asset] {
			return ValidationError{field + ".asset", fmt.Sprintf("duplicate asset %q", h.Asset)}
		}
		seen[h.Asset] = true
		if math.IsNaN(h.Weight) || math.IsInf(h.Weight, 0) {
			return ValidationError{field + ".weight", "must be finite"}
		}
	}

	// === Simulation ===
	s := cfg.Simulation
	if !(s.Alpha > 0 && s.Alpha < 1) {
		return ValidationError{"simulation.alpha", "must be in (0, 1)"}
	}
	if s.NumSims < 1 {
		return ValidationError{"simulation.num_sims", "must be >= 1"}
	}
	if err := validateModes(s.Modes, "simulation.modes"); err != nil {
		return err
	}
	if s.Workers < 0 {
		return ValidationError{"simulation.workers", "must be >= 0"}
	}

	// === Backtest ===
	if cfg.Backtest.Window < 2 {
		return ValidationError{"backtest.window", "must be >= 2"}
	}

	// === Tests ===
	t := cfg.Tests
	if !(t.Significance > 0 && t.Significance < 1) {
		return ValidationError{"tests.significance", "must be in (0, 1)"}
	}
	if !(t.Epsilon > 0 && t.Epsilon < 0.5) {
		return ValidationError{"tests.epsilon", "must be in (0, 0.5)"}
	}
	if t.StressClusterMin < 1 {
		return ValidationError{"tests.stress_cluster_min", "must be >= 1"}
	}
	if t.Bootstrap < 2 {
		return ValidationError{"tests.bootstrap", "must be >= 2"}
	}

	// === Stress periods ===
	for i, p := range cfg.StressPeriods {
		field := fmt.Sprintf("stress_periods[%d]", i)
		if p.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		ps, err := time.Parse(market.DateLayout, p.Start)
		if err != nil {
			return ValidationError{field + ".start", "must be YYYY-MM-DD"}
		}
		pe, err := time.Parse(market.DateLayout, p.End)
		if err != nil {
			return ValidationError{field + ".end", "must be YYYY-MM-DD"}
		}
		if pe.Before(ps) {
			return ValidationError{field, "end must not be before start"}
		}
	}

	// === Convergence ===
	c := cfg.Convergence
	for i, n := range c.SimCounts {
		if n < 1 {
			return ValidationError{fmt.Sprintf("convergence.sim_counts[%d]", i), "must be >= 1"}
		}
	}
	if len(c.SimCounts) > 0 {
		if c.Runs < 2 {
			return ValidationError{"convergence.runs", "must be >= 2"}
		}
		if c.ReferenceSims < 1 || c.ReferenceRuns < 1 {
			return ValidationError{"convergence", "reference_sims and reference_runs must be >= 1"}
		}
	}

	// === Variance reduction ===
	v := cfg.VarianceReduction
	if len(v.BaseModes) > 0 {
		if v.NumSims < 2 {
			return ValidationError{"variance_reduction.num_sims", "must be >= 2"}
		}
		if v.Runs < 2 {
			return ValidationError{"variance_reduction.runs", "must be >= 2"}
		}
		if err := validateModes(v.BaseModes, "variance_reduction.base_modes"); err != nil {
			return err
		}
	}

	// === Boundary ===
	b := cfg.Boundary
	for i, d := range b.Dimensions {
		if d < 1 {
			return ValidationError{fmt.Sprintf("boundary.dimensions[%d]", i), "must be >= 1"}
		}
	}
	for i, s := range b.VolScales {
		if s <= 0 {
			return ValidationError{fmt.Sprintf("boundary.vol_scales[%d]", i), "must be > 0"}
		}
	}
	for i, rho := range b.Correlations {
		if rho < 0 || rho >= 1 {
			return ValidationError{fmt.Sprintf("boundary.correlations[%d]", i), "must be in [0, 1)"}
		}
	}
	if b.NumSims < 0 {
		return ValidationError{"boundary.num_sims", "must be >= 0"}
	}
	if b.Runs < 0 || b.Runs == 1 {
		return ValidationError{"boundary.runs", "must be 0 (default) or >= 2"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 가중치 합 ≠ 1
	var sum float64
	for _, h := range cfg.Portfolio.Holdings {
		sum += h.Weight
	}
	if math.Abs(sum-1) > market.WeightSumTolerance {
		warnings = append(warnings, Warning{
			Code:    "WEIGHT_SUM",
			Message: fmt.Sprintf("portfolio weights sum to %.6f, not 1", sum),
		})
	}

	// 시나리오 수가 tail 추정에 부족
	if tail := float64(cfg.Simulation.NumSims) * (1 - cfg.Simulation.Alpha); tail < 50 {
		warnings = append(warnings, Warning{
			Code:    "THIN_TAIL",
			Message: fmt.Sprintf("only %.0f scenarios expected beyond VaR: CVaR will be noisy", tail),
		})
	}

	// 추정 window가 자산 수 대비 짧음
	if cfg.Backtest.Window <= 2*len(cfg.Portfolio.Holdings) {
		warnings = append(warnings, Warning{
			Code:    "SHORT_WINDOW",
			Message: "window barely exceeds asset count: covariance may not be positive definite",
		})
	}

	// control variate는 tail을 축소시킴
	if cfg.Simulation.ControlVariate {
		warnings = append(warnings, Warning{
			Code:    "CONTROL_VARIATE_BIAS",
			Message: "control variate shrinks the simulated tail: VaR is biased toward the mean",
		})
	}

	return warnings
}

func validateModes(modes []string, field string) error {
	if len(modes) == 0 {
		return ValidationError{field, "at least one mode required"}
	}
	seen := make(map[scenario.Mode]bool, len(modes))
	for i, name := range modes {
		m, err := scenario.ParseMode(name)
		if err != nil {
			return ValidationError{fmt.Sprintf("%s[%d]", field, i), err.Error()}
		}
		if seen[m] {
			return ValidationError{fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("duplicate mode %s", m)}
		}
		seen[m] = true
	}
	return nil
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(market.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be YYYY-MM-DD")
	}
	return t, nil
}
