// Package backtest runs the rolling-window VaR backtest.
package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/pkg/logger"
)

// Config holds backtest configuration
type Config struct {
	Alpha          float64         // confidence level (0.95)
	Window         int             // estimation window W (252)
	NumSims        int             // scenarios per window and mode (10000)
	Modes          []scenario.Mode // evaluated on the same per-window estimate
	Weights        []float64       // fixed portfolio weights, len d
	Seed           uint64
	Workers        int  // parallel windows (<= 0 → GOMAXPROCS)
	Antithetic     bool // variance reduction: Z / -Z pairing
	ControlVariate bool // variance reduction: equal-weight control

	// OnWindow is called after every completed window with the number of
	// completed windows and the total. Called from worker goroutines.
	OnWindow func(done, total int)
}

// DefaultConfig returns the standard 95% / 252-day / 10,000-scenario setup.
func DefaultConfig() Config {
	return Config{
		Alpha:   0.95,
		Window:  252,
		NumSims: 10000,
		Modes:   []scenario.Mode{scenario.PseudoNormal()},
		Seed:    42,
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Validate checks the config against a return table of T rows and d assets.
func (c Config) Validate(T, d int) error {
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("%w: %v", risk.ErrInvalidConfidenceLevel, c.Alpha)
	}
	if c.Window < 2 {
		return fmt.Errorf("%w: window must be >= 2, got %d", ErrInvalidConfig, c.Window)
	}
	if c.NumSims < 1 {
		return fmt.Errorf("%w: %d", scenario.ErrInvalidSimCount, c.NumSims)
	}
	if len(c.Modes) == 0 {
		return fmt.Errorf("%w: no modes", ErrInvalidConfig)
	}
	seen := make(map[scenario.Mode]bool, len(c.Modes))
	for _, m := range c.Modes {
		if err := m.Validate(); err != nil {
			return err
		}
		if seen[m] {
			return fmt.Errorf("%w: duplicate mode %s", ErrInvalidConfig, m)
		}
		seen[m] = true
	}
	if len(c.Weights) != d {
		return fmt.Errorf("%w: %d weights for %d assets", market.ErrWeightMismatch, len(c.Weights), d)
	}
	if T <= c.Window {
		return fmt.Errorf("%w: %d observations for window %d", market.ErrShortHistory, T, c.Window)
	}
	return nil
}

// Engine runs rolling backtests
// ⭐ SSOT: rolling-window 추정 루프는 여기서만
type Engine struct {
	logger *logger.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{logger: log.Component("backtest.engine")}
}

// Run executes the rolling backtest over rows t ∈ [W, T).
//
// Warmup (t < W) emits nothing; every t ≥ W estimates mean/covariance once
// from rows [t-W, t) and evaluates every mode against it. Windows run in
// parallel but each (t, mode) draws from its own generator stream, so the
// table does not depend on Workers.
//
// Any window failure aborts the run: windows above the failing index are
// not started, lower ones finish. The returned table then holds the
// contiguous prefix before the earliest failure and the error is a
// *WindowError. Cancellation is checked between windows and likewise
// returns the completed prefix with ctx.Err().
func (e *Engine) Run(ctx context.Context, returns *market.Returns, cfg Config) (*Table, error) {
	if err := returns.Validate(); err != nil {
		return nil, err
	}
	T, d := returns.Len(), returns.Dim()
	if err := cfg.Validate(T, d); err != nil {
		return nil, err
	}

	warnings, err := market.ValidateWeights(cfg.Weights, d)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		e.logger.Warn(w)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	total := T - cfg.Window
	rows := make([]Row, total)
	done := make([]bool, total)
	errs := make([]*WindowError, total)

	log := e.logger.WithFields(map[string]interface{}{
		"alpha":    cfg.Alpha,
		"window":   cfg.Window,
		"num_sims": cfg.NumSims,
		"modes":    len(cfg.Modes),
		"rows":     total,
		"workers":  workers,
	})
	log.Info("Starting rolling backtest")
	start := time.Now()

	streams := make([]uint64, len(cfg.Modes))
	for k, m := range cfg.Modes {
		streams[k] = m.StreamKey()
	}

	var (
		next     atomic.Int64
		finished atomic.Int64
		stopAt   atomic.Int64 // lowest failing index so far
	)
	stopAt.Store(int64(total))

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= total || int64(i) > stopAt.Load() {
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}

				row, werr := e.window(returns, cfg, streams, cfg.Window+i)
				if werr != nil {
					errs[i] = werr
					for {
						cur := stopAt.Load()
						if int64(i) >= cur || stopAt.CompareAndSwap(cur, int64(i)) {
							break
						}
					}
					continue
				}

				rows[i] = row
				done[i] = true

				n := int(finished.Add(1))
				if cfg.OnWindow != nil {
					cfg.OnWindow(n, total)
				}
			}
		})
	}
	_ = g.Wait()

	// contiguous completed prefix
	prefix := 0
	for prefix < total && done[prefix] {
		prefix++
	}

	table := &Table{
		Alpha:   cfg.Alpha,
		Window:  cfg.Window,
		NumSims: cfg.NumSims,
		Modes:   append([]scenario.Mode(nil), cfg.Modes...),
		Rows:    rows[:prefix],
	}

	if prefix < total {
		if werr := errs[prefix]; werr != nil {
			log.WithError(werr.Err).WithFields(map[string]interface{}{
				"target":    werr.Target.Format(market.DateLayout),
				"from":      werr.From.Format(market.DateLayout),
				"to":        werr.To.Format(market.DateLayout),
				"completed": prefix,
			}).Error("Backtest aborted")
			return table, werr
		}
		log.WithField("completed", prefix).Warn("Backtest cancelled")
		if err := ctx.Err(); err != nil {
			return table, err
		}
		return table, context.Canceled
	}

	log.WithField("duration", time.Since(start).String()).Info("Backtest completed")
	return table, nil
}

// window computes row t from the W observations before it.
func (e *Engine) window(returns *market.Returns, cfg Config, streams []uint64, t int) (Row, *WindowError) {
	from := t - cfg.Window
	fail := func(mode string, err error) *WindowError {
		return &WindowError{
			Index:  t,
			Target: returns.Dates[t],
			From:   returns.Dates[from],
			To:     returns.Dates[t-1],
			Mode:   mode,
			Err:    err,
		}
	}

	win, err := returns.Window(from, t)
	if err != nil {
		return Row{}, fail("", err)
	}
	// ⭐ 모든 mode가 같은 추정치를 공유
	params, err := market.Estimate(win)
	if err != nil {
		return Row{}, fail("", err)
	}

	row := Row{
		Index:     t,
		Date:      returns.Dates[t],
		Actual:    returns.PortfolioReturn(t, cfg.Weights),
		Estimates: make([]Estimate, len(cfg.Modes)),
	}

	for k, mode := range cfg.Modes {
		gen := scenario.NewGenerator(cfg.Seed, scenario.DeriveStream(uint64(t), streams[k]))
		res, err := risk.Simulate(gen, params.Mean, params.Cov, cfg.Weights, risk.Sampling{
			Mode:           mode,
			NumSims:        cfg.NumSims,
			Antithetic:     cfg.Antithetic,
			ControlVariate: cfg.ControlVariate,
		}, cfg.Alpha)
		if err != nil {
			return Row{}, fail(mode.String(), err)
		}
		row.Estimates[k] = Estimate{VaR: res.VaR, CVaR: res.CVaR}
	}

	return row, nil
}
