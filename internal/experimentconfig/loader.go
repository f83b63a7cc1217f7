// Package experimentconfig loads and validates YAML experiment files.
package experimentconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/aegis-risklab/pkg/config"
)

// Load reads YAML file and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, data, err
	}
	return cfg, data, nil
}

// Parse decodes and validates YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode experiment config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a config from environment defaults, for runs without a file.
// Portfolio and data source still have to be filled in by the caller.
func FromEnv(r config.RiskConfig) *Config {
	return &Config{
		Meta: Meta{ExperimentID: "adhoc", Version: "1"},
		Simulation: Simulation{
			Alpha:      r.Alpha,
			NumSims:    r.NumSims,
			Modes:      append([]string(nil), r.Modes...),
			Seed:       r.Seed,
			Workers:    r.Workers,
			Antithetic: r.Antithetic,
		},
		Backtest: Backtest{Window: r.Window},
		Tests: Tests{
			Significance:     r.Significance,
			Epsilon:          r.Epsilon,
			StressClusterMin: r.StressClusterMin,
			Bootstrap:        r.Bootstrap,
		},
		StressPeriods: []StressPeriod{
			{Name: "COVID-19 Crash", Start: "2020-02-01", End: "2020-04-30"},
			{Name: "Legoland Crisis", Start: "2022-09-01", End: "2022-12-31"},
			{Name: "Rate Surge 2023", Start: "2023-01-01", End: "2023-06-30"},
		},
		Convergence: Convergence{
			SimCounts:     []int{1000, 5000, 10000, 50000},
			Runs:          50,
			ReferenceSims: 100000,
			ReferenceRuns: 5,
		},
		VarianceReduction: VarianceReduction{
			NumSims:   r.NumSims,
			Runs:      100,
			BaseModes: []string{"pseudorandom-normal", "low-discrepancy-sobol"},
		},
	}
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// NewRunSnapshot creates a snapshot stored next to a saved run
func NewRunSnapshot(cfg *Config, yamlData []byte) (*RunSnapshot, error) {
	hash, err := Hash(cfg)
	if err != nil {
		return nil, err
	}

	return &RunSnapshot{
		ConfigHash:   hash,
		ConfigYAML:   string(yamlData),
		ExperimentID: cfg.Meta.ExperimentID,
		CreatedAt:    time.Now(),
	}, nil
}
