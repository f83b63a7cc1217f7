package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/aegis-risklab/internal/experiment"
	"github.com/wonny/aegis-risklab/internal/experimentconfig"
	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/pkg/config"
	"github.com/wonny/aegis-risklab/pkg/logger"
)

// session everything a command needs, built once per invocation
type session struct {
	cfg      *config.Config
	log      *logger.Logger
	exp      *experimentconfig.Config
	yaml     []byte
	returns  *market.Returns
	warnings []experimentconfig.Warning
}

// newSession loads env config, experiment config and the return table.
// ⭐ 모든 커맨드가 동일한 초기화 순서를 사용
func newSession() (*session, error) {
	// 1. Load env config
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Experiment config
	s := &session{cfg: cfg, log: log}
	if configFile != "" {
		s.exp, s.yaml, err = experimentconfig.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load experiment %s: %w", configFile, err)
		}
	} else {
		s.exp = experimentconfig.FromEnv(cfg.Risk)
	}
	if returnsPath != "" {
		s.exp.Data.ReturnsCSV = returnsPath
	}
	if s.exp.Data.ReturnsCSV == "" {
		return nil, fmt.Errorf("no return table: pass --returns or set data.returns_csv")
	}

	// 4. Return table
	returns, err := market.LoadCSV(s.exp.Data.ReturnsCSV)
	if err != nil {
		return nil, err
	}
	start, end := s.exp.DateRange()
	if s.returns, err = returns.Restrict(start, end); err != nil {
		return nil, err
	}

	// 5. Holdings: --weights > config > equal weight
	if weightsSpec != "" {
		if s.exp.Portfolio.Holdings, err = parseWeights(weightsSpec); err != nil {
			return nil, err
		}
	}
	if len(s.exp.Portfolio.Holdings) == 0 {
		s.exp.Portfolio.Holdings = equalWeights(s.returns.Assets)
	}

	if err := experimentconfig.Validate(s.exp); err != nil {
		return nil, err
	}
	s.warnings = experimentconfig.Warn(s.exp)
	for _, w := range s.warnings {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	log.WithFields(map[string]interface{}{
		"experiment": s.exp.Meta.ExperimentID,
		"rows":       s.returns.Len(),
		"assets":     s.returns.Dim(),
	}).Debug("Session ready")

	return s, nil
}

// problem full-sample mean/cov of the (restricted) return table
func (s *session) problem() (experiment.Problem, error) {
	params, err := market.Estimate(s.returns.Values)
	if err != nil {
		return experiment.Problem{}, err
	}
	weights, err := s.exp.Weights(s.returns.Assets)
	if err != nil {
		return experiment.Problem{}, err
	}
	return experiment.Problem{
		Mean:    params.Mean,
		Cov:     params.Cov,
		Weights: weights,
		Alpha:   s.exp.Simulation.Alpha,
	}, nil
}

// lastWindow estimate from the most recent backtest window
func (s *session) lastWindow() (market.Params, error) {
	T := s.returns.Len()
	from := max(0, T-s.exp.Backtest.Window)
	win, err := s.returns.Window(from, T)
	if err != nil {
		return market.Params{}, err
	}
	return market.Estimate(win)
}

func parseWeights(spec string) ([]experimentconfig.Holding, error) {
	var out []experimentconfig.Holding
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		asset, w, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid weight %q: want ASSET=W", part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", part, err)
		}
		out = append(out, experimentconfig.Holding{Asset: strings.TrimSpace(asset), Weight: v})
	}
	return out, nil
}

func equalWeights(assets []string) []experimentconfig.Holding {
	out := make([]experimentconfig.Holding, len(assets))
	for i, a := range assets {
		out[i] = experimentconfig.Holding{Asset: a, Weight: 1 / float64(len(assets))}
	}
	return out
}
