package stattest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
)

func bootstrapConfig(mode scenario.Mode) BootstrapConfig {
	return BootstrapConfig{
		Mean:        []float64{0, 0},
		Cov:         mat.NewSymDense(2, []float64{1e-4, 0, 0, 1e-4}),
		Weights:     []float64{0.5, 0.5},
		Sampling:    risk.Sampling{Mode: mode, NumSims: 2000},
		Alpha:       0.95,
		Repetitions: 20,
		Seed:        42,
		Workers:     4,
	}
}

func TestBootstrap(t *testing.T) {
	// σ_p = sqrt(0.25e-4 + 0.25e-4)
	sigma := 0.0070710678
	want := distuv.UnitNormal.Quantile(0.05) * sigma

	for _, mode := range []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true), scenario.Halton(true)} {
		t.Run(mode.String(), func(t *testing.T) {
			iv, err := Bootstrap(context.Background(), bootstrapConfig(mode))
			require.NoError(t, err)

			assert.Equal(t, mode, iv.Mode)
			assert.Equal(t, 20, iv.Repetitions)
			assert.LessOrEqual(t, iv.VaR.Lower, iv.VaR.Mean)
			assert.LessOrEqual(t, iv.VaR.Mean, iv.VaR.Upper)
			assert.InEpsilon(t, want, iv.VaR.Mean, 0.03)
			assert.Less(t, iv.CVaR.Mean, iv.VaR.Mean)
			assert.Greater(t, iv.VaR.StdDev, 0.0)
		})
	}
}

func TestBootstrap_IndependentOfWorkers(t *testing.T) {
	cfg := bootstrapConfig(scenario.PseudoNormal())
	cfg.Workers = 1
	serial, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestBootstrap_Errors(t *testing.T) {
	cfg := bootstrapConfig(scenario.PseudoNormal())
	cfg.Repetitions = 1
	_, err := Bootstrap(context.Background(), cfg)
	assert.ErrorIs(t, err, riskerr.ErrConfiguration)

	cfg = bootstrapConfig(scenario.StudentT(0))
	_, err = Bootstrap(context.Background(), cfg)
	assert.ErrorIs(t, err, riskerr.ErrConfiguration)

	cfg = bootstrapConfig(scenario.PseudoNormal())
	cfg.Weights = []float64{1}
	_, err = Bootstrap(context.Background(), cfg)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Bootstrap(ctx, bootstrapConfig(scenario.PseudoNormal()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCI(t *testing.T) {
	a := CI{Lower: -0.03, Upper: -0.02}
	b := CI{Lower: -0.025, Upper: -0.015}
	c := CI{Lower: -0.01, Upper: -0.005}

	assert.InDelta(t, 0.005, a.Overlap(b), 1e-12)
	assert.False(t, a.Disjoint(b))
	assert.Equal(t, 0.0, a.Overlap(c))
	assert.True(t, a.Disjoint(c))
	assert.True(t, c.Disjoint(a))
	assert.InDelta(t, 0.01, a.Width(), 1e-12)
}

func TestPercentileCI(t *testing.T) {
	values := make([]float64, 0, 101)
	for i := 0; i <= 100; i++ {
		values = append(values, float64(i))
	}
	ci := percentileCI(values)
	assert.InDelta(t, 2.5, ci.Lower, 1e-12)
	assert.InDelta(t, 97.5, ci.Upper, 1e-12)
	assert.InDelta(t, 50, ci.Mean, 1e-12)
}
