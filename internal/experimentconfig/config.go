package experimentconfig

import "time"

// Config 실험 한 건의 전체 설정
type Config struct {
	Meta              Meta              `yaml:"meta" json:"meta"`
	Data              Data              `yaml:"data" json:"data"`
	Portfolio         Portfolio         `yaml:"portfolio" json:"portfolio"`
	Simulation        Simulation        `yaml:"simulation" json:"simulation"`
	Backtest          Backtest          `yaml:"backtest" json:"backtest"`
	Tests             Tests             `yaml:"tests" json:"tests"`
	StressPeriods     []StressPeriod    `yaml:"stress_periods" json:"stress_periods"`
	Convergence       Convergence       `yaml:"convergence" json:"convergence"`
	VarianceReduction VarianceReduction `yaml:"variance_reduction" json:"variance_reduction"`
	Boundary          Boundary          `yaml:"boundary" json:"boundary"`
}

// Meta 메타 정보
type Meta struct {
	ExperimentID string `yaml:"experiment_id" json:"experiment_id"`
	Version      string `yaml:"version" json:"version"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Data return table source
type Data struct {
	ReturnsCSV string `yaml:"returns_csv" json:"returns_csv"`
	Start      string `yaml:"start,omitempty" json:"start,omitempty"` // YYYY-MM-DD, optional
	End        string `yaml:"end,omitempty" json:"end,omitempty"`
}

// Portfolio fixed weights, matched to CSV columns by asset name
type Portfolio struct {
	Holdings []Holding `yaml:"holdings" json:"holdings"`
}

type Holding struct {
	Asset  string  `yaml:"asset" json:"asset"`
	Weight float64 `yaml:"weight" json:"weight"` // 합 = 1.0 권장
}

// Simulation scenario generation settings
type Simulation struct {
	Alpha          float64  `yaml:"alpha" json:"alpha"`
	NumSims        int      `yaml:"num_sims" json:"num_sims"`
	Modes          []string `yaml:"modes" json:"modes"`
	Seed           uint64   `yaml:"seed" json:"seed"`
	Workers        int      `yaml:"workers" json:"workers"`
	Antithetic     bool     `yaml:"antithetic" json:"antithetic"`
	ControlVariate bool     `yaml:"control_variate" json:"control_variate"`
}

type Backtest struct {
	Window int `yaml:"window" json:"window"`
}

// Tests statistical test settings
type Tests struct {
	Significance     float64 `yaml:"significance" json:"significance"`
	Epsilon          float64 `yaml:"epsilon" json:"epsilon"`
	StressClusterMin int     `yaml:"stress_cluster_min" json:"stress_cluster_min"`
	Bootstrap        int     `yaml:"bootstrap" json:"bootstrap"`
}

type StressPeriod struct {
	Name  string `yaml:"name" json:"name"`
	Start string `yaml:"start" json:"start"` // YYYY-MM-DD
	End   string `yaml:"end" json:"end"`
}

type Convergence struct {
	SimCounts     []int `yaml:"sim_counts" json:"sim_counts"`
	Runs          int   `yaml:"runs" json:"runs"`
	ReferenceSims int   `yaml:"reference_sims" json:"reference_sims"`
	ReferenceRuns int   `yaml:"reference_runs" json:"reference_runs"`
}

type VarianceReduction struct {
	NumSims   int      `yaml:"num_sims" json:"num_sims"`
	Runs      int      `yaml:"runs" json:"runs"`
	BaseModes []string `yaml:"base_modes" json:"base_modes"`
}

// Boundary 경계 조건 sweep; empty axes keep the defaults
type Boundary struct {
	Dimensions   []int     `yaml:"dimensions" json:"dimensions"`
	VolScales    []float64 `yaml:"vol_scales" json:"vol_scales"`
	Correlations []float64 `yaml:"correlations" json:"correlations"`
	NumSims      int       `yaml:"num_sims" json:"num_sims"` // 0 → default
	Runs         int       `yaml:"runs" json:"runs"`         // 0 → default
}

// RunSnapshot 실행 스냅샷 (재현성용)
type RunSnapshot struct {
	ConfigHash   string    `json:"config_hash"`
	ConfigYAML   string    `json:"config_yaml"`
	ExperimentID string    `json:"experiment_id"`
	CreatedAt    time.Time `json:"created_at"`
}
