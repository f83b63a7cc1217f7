package experimentconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/wonny/aegis-risklab/internal/experiment"
	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/pkg/config"
)

func TestLoad(t *testing.T) {
	cfg, yamlData, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 기본 검증
	if cfg.Meta.ExperimentID != "kospi_mc_qmc" {
		t.Errorf("expected experiment_id=kospi_mc_qmc, got %s", cfg.Meta.ExperimentID)
	}
	if len(cfg.Portfolio.Holdings) != 5 {
		t.Errorf("expected 5 holdings, got %d", len(cfg.Portfolio.Holdings))
	}
	if cfg.Portfolio.Holdings[0].Asset != "005930" {
		t.Errorf("asset codes must stay strings, got %q", cfg.Portfolio.Holdings[0].Asset)
	}
	if cfg.Tests.Epsilon != 1e-10 {
		t.Errorf("expected epsilon=1e-10, got %v", cfg.Tests.Epsilon)
	}

	// 해시 생성
	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	// 설정 변경 → 해시 변경
	cfg.Simulation.Seed++
	hash3, _ := Hash(cfg)
	if hash == hash3 {
		t.Error("hash ignores simulation.seed")
	}

	if len(Warn(cfg)) != 0 {
		t.Errorf("expected no warnings, got %v", Warn(cfg))
	}
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load("testdata/missing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParse_UnknownField(t *testing.T) {
	data := validYAML(t)
	data = strings.Replace(data, "  num_sims: 10000\n  modes:", "  num_sim: 10000\n  modes:", 1)

	_, err := Parse([]byte(data))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "num_sim") {
		t.Errorf("error should name the field, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"experiment id", func(c *Config) { c.Meta.ExperimentID = "" }, "meta.experiment_id"},
		{"returns csv", func(c *Config) { c.Data.ReturnsCSV = "" }, "data.returns_csv"},
		{"start format", func(c *Config) { c.Data.Start = "2020/01/01" }, "data.start"},
		{"range", func(c *Config) { c.Data.Start, c.Data.End = "2021-01-01", "2020-01-01" }, "data"},
		{"no holdings", func(c *Config) { c.Portfolio.Holdings = nil }, "portfolio.holdings"},
		{"duplicate asset", func(c *Config) { c.Portfolio.Holdings[1].Asset = "005930" }, "portfolio.holdings[1].asset"},
		{"alpha", func(c *Config) { c.Simulation.Alpha = 1 }, "simulation.alpha"},
		{"num sims", func(c *Config) { c.Simulation.NumSims = 0 }, "simulation.num_sims"},
		{"no modes", func(c *Config) { c.Simulation.Modes = nil }, "simulation.modes"},
		{"bad mode", func(c *Config) { c.Simulation.Modes = []string{"latin-hypercube"} }, "simulation.modes[0]"},
		{"duplicate mode", func(c *Config) { c.Simulation.Modes = []string{"sobol", "low-discrepancy-sobol"} }, "simulation.modes[1]"},
		{"window", func(c *Config) { c.Backtest.Window = 1 }, "backtest.window"},
		{"significance", func(c *Config) { c.Tests.Significance = 0 }, "tests.significance"},
		{"epsilon", func(c *Config) { c.Tests.Epsilon = 0.7 }, "tests.epsilon"},
		{"cluster", func(c *Config) { c.Tests.StressClusterMin = 0 }, "tests.stress_cluster_min"},
		{"bootstrap", func(c *Config) { c.Tests.Bootstrap = 1 }, "tests.bootstrap"},
		{"period order", func(c *Config) { c.StressPeriods[0].End = "2019-01-01" }, "stress_periods[0]"},
		{"period name", func(c *Config) { c.StressPeriods[2].Name = "" }, "stress_periods[2].name"},
		{"sim counts", func(c *Config) { c.Convergence.SimCounts = []int{100, 0} }, "convergence.sim_counts[1]"},
		{"convergence runs", func(c *Config) { c.Convergence.Runs = 1 }, "convergence.runs"},
		{"vr runs", func(c *Config) { c.VarianceReduction.Runs = 0 }, "variance_reduction.runs"},
		{"vr modes", func(c *Config) { c.VarianceReduction.BaseModes = []string{"t[0]"} }, "variance_reduction.base_modes[0]"},
		{"boundary dimension", func(c *Config) { c.Boundary.Dimensions = []int{2, 0} }, "boundary.dimensions[1]"},
		{"boundary scale", func(c *Config) { c.Boundary.VolScales = []float64{-1} }, "boundary.vol_scales[0]"},
		{"boundary correlation", func(c *Config) { c.Boundary.Correlations = []float64{0.5, 1} }, "boundary.correlations[1]"},
		{"boundary runs", func(c *Config) { c.Boundary.Runs = 1 }, "boundary.runs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := mustValid(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %s, got %s (%s)", tt.field, verr.Field, verr.Message)
			}
			if !errors.Is(err, riskerr.ErrConfiguration) {
				t.Error("validation error must be a configuration error")
			}
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := mustValid(t)
	cfg.Portfolio.Holdings[0].Weight = 0.5 // 합 1.2
	cfg.Simulation.NumSims = 500           // tail 25개
	cfg.Simulation.ControlVariate = true
	cfg.Backtest.Window = 8

	codes := map[string]bool{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	for _, code := range []string{"WEIGHT_SUM", "THIN_TAIL", "SHORT_WINDOW", "CONTROL_VARIATE_BIAS"} {
		if !codes[code] {
			t.Errorf("expected warning %s", code)
		}
	}

	// 경고는 검증 실패가 아님
	if err := Validate(cfg); err != nil {
		t.Errorf("warnings must not fail validation: %v", err)
	}
}

func TestWeights(t *testing.T) {
	cfg := mustValid(t)

	w, err := cfg.Weights([]string{"051910", "005930", "999999", "000660", "035420", "005380"})
	if err != nil {
		t.Fatalf("Weights failed: %v", err)
	}
	want := []float64{0.15, 0.30, 0, 0.20, 0.20, 0.15}
	for i := range want {
		if w[i] != want[i] {
			t.Errorf("weight[%d] = %v, want %v", i, w[i], want[i])
		}
	}

	_, err = cfg.Weights([]string{"005930"})
	if !errors.Is(err, market.ErrWeightMismatch) {
		t.Errorf("expected ErrWeightMismatch, got %v", err)
	}
}

func TestBacktestConfig(t *testing.T) {
	cfg := mustValid(t)
	cfg.Simulation.Workers = 3
	cfg.Simulation.Antithetic = true

	bc, err := cfg.BacktestConfig([]string{"005930", "000660", "035420", "005380", "051910"})
	if err != nil {
		t.Fatalf("BacktestConfig failed: %v", err)
	}
	if bc.Window != 252 || bc.NumSims != 10000 || bc.Alpha != 0.95 || bc.Seed != 42 {
		t.Errorf("unexpected backtest config: %+v", bc)
	}
	if bc.Workers != 3 || !bc.Antithetic || bc.ControlVariate {
		t.Errorf("unexpected worker / variance reduction settings: %+v", bc)
	}
	wantModes := []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true), scenario.Halton(true)}
	for i, m := range wantModes {
		if bc.Modes[i] != m {
			t.Errorf("mode[%d] = %s, want %s", i, bc.Modes[i], m)
		}
	}
	if err := bc.Validate(300, 5); err != nil {
		t.Errorf("converted config must validate: %v", err)
	}
}

func TestConversions(t *testing.T) {
	cfg := mustValid(t)

	opts := cfg.Options()
	if opts.Significance != 0.05 || opts.Epsilon != 1e-10 || opts.StressClusterMin != 3 {
		t.Errorf("unexpected options: %+v", opts)
	}

	periods, err := cfg.Periods()
	if err != nil {
		t.Fatalf("Periods failed: %v", err)
	}
	defaults := experiment.DefaultPeriods()
	if len(periods) != len(defaults) {
		t.Fatalf("expected %d periods, got %d", len(defaults), len(periods))
	}
	for i := range defaults {
		if periods[i] != defaults[i] {
			t.Errorf("period[%d] = %+v, want %+v", i, periods[i], defaults[i])
		}
	}

	start, end := cfg.DateRange()
	if start.Format(market.DateLayout) != "2019-01-01" || end.Format(market.DateLayout) != "2024-12-31" {
		t.Errorf("unexpected date range %v - %v", start, end)
	}

	s := cfg.Sampling(scenario.Sobol(true))
	if s.NumSims != 10000 || s.Mode != scenario.Sobol(true) {
		t.Errorf("unexpected sampling %+v", s)
	}

	p := experiment.Problem{Alpha: 0.95}
	cc, err := cfg.ConvergenceConfig(p)
	if err != nil {
		t.Fatalf("ConvergenceConfig failed: %v", err)
	}
	if len(cc.SimCounts) != 4 || cc.Runs != 50 || len(cc.Modes) != 3 {
		t.Errorf("unexpected convergence config %+v", cc)
	}

	vr, err := cfg.VarianceReductionConfig(p)
	if err != nil {
		t.Fatalf("VarianceReductionConfig failed: %v", err)
	}
	if len(vr.BaseModes) != 2 || vr.Runs != 100 {
		t.Errorf("unexpected variance reduction config %+v", vr)
	}

	bc, err := cfg.BoundaryConfig(p)
	if err != nil {
		t.Fatalf("BoundaryConfig failed: %v", err)
	}
	if len(bc.Dimensions) != 8 || bc.Dimensions[7] != 50 || len(bc.VolScales) != 5 || len(bc.Correlations) != 5 {
		t.Errorf("unexpected boundary sweep %+v", bc)
	}
	if bc.NumSims != 10000 || bc.Runs != 50 || len(bc.Modes) != 3 {
		t.Errorf("unexpected boundary config %+v", bc)
	}

	cfg.Boundary = Boundary{Dimensions: []int{20, 30, 50}}
	bc, err = cfg.BoundaryConfig(p)
	if err != nil {
		t.Fatalf("BoundaryConfig failed: %v", err)
	}
	base := experiment.DefaultBoundaryConfig(p)
	if len(bc.Dimensions) != 3 || len(bc.VolScales) != len(base.VolScales) || bc.Runs != base.Runs {
		t.Errorf("unset boundary fields must keep defaults: %+v", bc)
	}
}

func TestFromEnv(t *testing.T) {
	risk := config.RiskConfig{
		Alpha:            0.99,
		Window:           120,
		NumSims:          5000,
		Modes:            []string{"mc", "sobol"},
		Significance:     0.01,
		StressClusterMin: 4,
		Bootstrap:        50,
		Seed:             7,
		Workers:          2,
		Epsilon:          1e-12,
	}

	cfg := FromEnv(risk)
	cfg.Data.ReturnsCSV = "returns.csv"
	cfg.Portfolio.Holdings = []Holding{{Asset: "A", Weight: 1}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("env defaults must validate: %v", err)
	}
	if cfg.Simulation.Alpha != 0.99 || cfg.Backtest.Window != 120 || cfg.Tests.Bootstrap != 50 {
		t.Errorf("env values not carried over: %+v", cfg)
	}
	if len(cfg.StressPeriods) != 3 {
		t.Errorf("expected default stress periods, got %d", len(cfg.StressPeriods))
	}
}

func TestNewRunSnapshot(t *testing.T) {
	cfg, yamlData, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snap, err := NewRunSnapshot(cfg, yamlData)
	if err != nil {
		t.Fatalf("NewRunSnapshot failed: %v", err)
	}
	hash, _ := Hash(cfg)
	if snap.ConfigHash != hash {
		t.Error("snapshot hash mismatch")
	}
	if snap.ExperimentID != "kospi_mc_qmc" || snap.ConfigYAML != string(yamlData) {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func validYAML(t *testing.T) string {
	t.Helper()
	_, data, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return string(data)
}

func mustValid(t *testing.T) *Config {
	t.Helper()
	cfg, _, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}
