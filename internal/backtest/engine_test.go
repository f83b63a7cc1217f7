package backtest

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
)

// synthetic T × 2 return table on consecutive days
func syntheticReturns(t *testing.T, T int, seed uint64) *market.Returns {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 0))

	dates := make([]time.Time, T)
	data := make([]float64, 0, 2*T)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < T; i++ {
		dates[i] = start.AddDate(0, 0, i)
		a := 0.0005 + 0.01*rng.NormFloat64()
		b := 0.0002 + 0.5*a + 0.015*rng.NormFloat64()
		data = append(data, a, b)
	}

	r, err := market.NewReturns(dates, []string{"A", "B"}, mat.NewDense(T, 2, data))
	require.NoError(t, err)
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Window = 30
	cfg.NumSims = 500
	cfg.Modes = []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true), scenario.StudentT(5)}
	cfg.Weights = []float64{0.6, 0.4}
	cfg.Workers = 4
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.95, cfg.Alpha)
	assert.Equal(t, 252, cfg.Window)
	assert.Equal(t, 10000, cfg.NumSims)
	assert.Equal(t, []scenario.Mode{scenario.PseudoNormal()}, cfg.Modes)
}

func TestRun_RowCountAndAlignment(t *testing.T) {
	returns := syntheticReturns(t, 90, 1)
	cfg := testConfig()

	table, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)

	require.Equal(t, 90-30, table.Len())
	assert.Equal(t, cfg.Modes, table.Modes)
	assert.Equal(t, 0.95, table.Alpha)

	for i, row := range table.Rows {
		tt := cfg.Window + i
		assert.Equal(t, tt, row.Index)
		assert.Equal(t, returns.Dates[tt], row.Date)
		assert.InDelta(t, returns.PortfolioReturn(tt, cfg.Weights), row.Actual, 1e-15)
		require.Len(t, row.Estimates, len(cfg.Modes))
		for _, est := range row.Estimates {
			assert.LessOrEqual(t, est.CVaR, est.VaR)
			assert.Less(t, est.VaR, 0.0)
		}
	}
}

func TestRun_MatchesDirectEstimate(t *testing.T) {
	returns := syntheticReturns(t, 40, 2)
	cfg := testConfig()

	table, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)

	// recompute row 0, mode 1 by hand
	win, err := returns.Window(0, 30)
	require.NoError(t, err)
	params, err := market.Estimate(win)
	require.NoError(t, err)

	mode := cfg.Modes[1]
	gen := scenario.NewGenerator(cfg.Seed, scenario.DeriveStream(30, mode.StreamKey()))
	want, err := risk.Simulate(gen, params.Mean, params.Cov, cfg.Weights,
		risk.Sampling{Mode: mode, NumSims: cfg.NumSims}, cfg.Alpha)
	require.NoError(t, err)

	assert.Equal(t, want.VaR, table.Rows[0].Estimates[1].VaR)
	assert.Equal(t, want.CVaR, table.Rows[0].Estimates[1].CVaR)
}

func TestRun_IndependentOfWorkerCount(t *testing.T) {
	returns := syntheticReturns(t, 70, 3)

	cfg := testConfig()
	cfg.Workers = 1
	serial, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)

	assert.Equal(t, serial.Rows, parallel.Rows)
}

func TestRun_ModeStreamIndependentOfOrder(t *testing.T) {
	returns := syntheticReturns(t, 50, 4)

	cfg := testConfig()
	a, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)

	cfg.Modes = []scenario.Mode{scenario.StudentT(5), scenario.PseudoNormal()}
	b, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)

	for i := range a.Rows {
		assert.Equal(t, a.Rows[i].Estimates[0], b.Rows[i].Estimates[1])
		assert.Equal(t, a.Rows[i].Estimates[2], b.Rows[i].Estimates[0])
	}
}

func TestRun_VariateReductionOptions(t *testing.T) {
	returns := syntheticReturns(t, 45, 5)

	cfg := testConfig()
	cfg.Antithetic = true
	cfg.ControlVariate = true

	table, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)
	assert.Equal(t, 15, table.Len())
}

func TestRun_AbortKeepsPrefix(t *testing.T) {
	const T, W, flatFrom = 100, 30, 50
	rng := rand.New(rand.NewPCG(9, 9))

	dates := make([]time.Time, T)
	data := make([]float64, 0, 2*T)
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < T; i++ {
		dates[i] = start.AddDate(0, 0, i)
		b := 0.01 * rng.NormFloat64()
		if i >= flatFrom {
			b = 0 // suspended asset: zero variance
		}
		data = append(data, 0.01*rng.NormFloat64(), b)
	}
	returns, err := market.NewReturns(dates, []string{"A", "B"}, mat.NewDense(T, 2, data))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Window = W

	for _, workers := range []int{1, 3, 8} {
		cfg.Workers = workers
		table, err := NewEngine(nil).Run(context.Background(), returns, cfg)

		var werr *WindowError
		require.ErrorAs(t, err, &werr)
		assert.ErrorIs(t, err, scenario.ErrNonPositiveDefinite)
		assert.ErrorIs(t, err, riskerr.ErrNumerical)

		// first window entirely inside the flat stretch: t-W = 50
		assert.Equal(t, flatFrom+W, werr.Index)
		assert.Equal(t, dates[flatFrom+W], werr.Target)
		assert.Equal(t, dates[flatFrom], werr.From)
		assert.Equal(t, dates[flatFrom+W-1], werr.To)
		assert.NotEmpty(t, werr.Mode)
		assert.Contains(t, werr.Error(), "2021-04-20")

		require.NotNil(t, table)
		assert.Equal(t, flatFrom, table.Len(), "workers=%d", workers)
		assert.Equal(t, flatFrom+W-1, table.Rows[table.Len()-1].Index)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	returns := syntheticReturns(t, 50, 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table, err := NewEngine(nil).Run(ctx, returns, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, table)
	assert.Equal(t, 0, table.Len())
}

func TestRun_CancelledBetweenWindows(t *testing.T) {
	returns := syntheticReturns(t, 80, 7)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	cfg.Workers = 1
	cfg.OnWindow = func(done, total int) {
		if done == 10 {
			cancel()
		}
	}

	table, err := NewEngine(nil).Run(ctx, returns, cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, table.Len())
	for i, row := range table.Rows {
		assert.Equal(t, cfg.Window+i, row.Index)
	}
}

func TestRun_Progress(t *testing.T) {
	returns := syntheticReturns(t, 60, 8)

	var calls, sum atomic.Int64
	cfg := testConfig()
	cfg.OnWindow = func(done, total int) {
		calls.Add(1)
		sum.Add(int64(done))
		assert.Equal(t, 30, total)
	}

	_, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(30), calls.Load())
	// every done count 1..30 reported exactly once
	assert.Equal(t, int64(30*31/2), sum.Load())
}

func TestRun_InvalidConfig(t *testing.T) {
	returns := syntheticReturns(t, 50, 9)

	tests := []struct {
		name     string
		mutate   func(*Config)
		category error
	}{
		{"alpha", func(c *Config) { c.Alpha = 1 }, riskerr.ErrConfiguration},
		{"window", func(c *Config) { c.Window = 1 }, riskerr.ErrConfiguration},
		{"sims", func(c *Config) { c.NumSims = 0 }, riskerr.ErrConfiguration},
		{"no modes", func(c *Config) { c.Modes = nil }, riskerr.ErrConfiguration},
		{"bad mode", func(c *Config) { c.Modes = []scenario.Mode{scenario.StudentT(-1)} }, riskerr.ErrConfiguration},
		{"duplicate", func(c *Config) { c.Modes = []scenario.Mode{scenario.Sobol(true), scenario.Sobol(true)} }, riskerr.ErrConfiguration},
		{"weights", func(c *Config) { c.Weights = []float64{1} }, riskerr.ErrConfiguration},
		{"short history", func(c *Config) { c.Window = 50 }, riskerr.ErrData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			table, err := NewEngine(nil).Run(context.Background(), returns, cfg)
			assert.Nil(t, table)
			assert.ErrorIs(t, err, tt.category)

			var werr *WindowError
			assert.False(t, errors.As(err, &werr))
		})
	}
}

func TestRun_WeightWarningDoesNotFail(t *testing.T) {
	returns := syntheticReturns(t, 40, 10)
	cfg := testConfig()
	cfg.Weights = []float64{0.7, 0.7}

	table, err := NewEngine(nil).Run(context.Background(), returns, cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, table.Len())
}
