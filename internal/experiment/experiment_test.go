package experiment

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risklab/internal/backtest"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/internal/stattest"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// daily table from 2020-01-01 with a constant VaR of -0.02; actual returns
// breach it on the listed offsets.
func stressTable(n int, breaches ...int) *backtest.Table {
	modes := []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true)}
	hit := make(map[int]bool, len(breaches))
	for _, b := range breaches {
		hit[b] = true
	}

	rows := make([]backtest.Row, n)
	start := day("2020-01-01")
	for i := range rows {
		actual := 0.001
		if hit[i] {
			actual = -0.05
		}
		rows[i] = backtest.Row{
			Index:  i,
			Date:   start.AddDate(0, 0, i),
			Actual: actual,
			Estimates: []backtest.Estimate{
				{VaR: -0.02, CVaR: -0.03},
				{VaR: -0.06, CVaR: -0.07}, // never breached
			},
		}
	}
	return &backtest.Table{Alpha: 0.95, Window: 252, NumSims: 100, Modes: modes, Rows: rows}
}

func TestDefaultPeriods(t *testing.T) {
	periods := DefaultPeriods()
	require.Len(t, periods, 3)

	assert.Equal(t, "COVID-19 Crash", periods[0].Name)
	assert.Equal(t, day("2020-02-01"), periods[0].Start)
	assert.Equal(t, day("2020-04-30"), periods[0].End)
	assert.Equal(t, "Legoland Crisis", periods[1].Name)
	assert.Equal(t, day("2022-12-31"), periods[1].End)
	assert.Equal(t, "Rate Surge 2023", periods[2].Name)
	assert.Equal(t, day("2023-01-01"), periods[2].Start)
}

func TestNewPeriod_Errors(t *testing.T) {
	tests := []struct {
		name, pname, start, end string
	}{
		{"bad start", "x", "2020/01/01", "2020-02-01"},
		{"bad end", "x", "2020-01-01", "soon"},
		{"reversed", "x", "2020-03-01", "2020-02-01"},
		{"no name", "", "2020-01-01", "2020-02-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPeriod(tt.pname, tt.start, tt.end)
			assert.ErrorIs(t, err, ErrInvalidPeriod)
			assert.ErrorIs(t, err, riskerr.ErrConfiguration)
		})
	}
}

func TestStressPeriods(t *testing.T) {
	// 2020-02-01 is offset 31; 2020-04-30 is offset 120
	table := stressTable(200, 31, 32, 33, 100, 150)
	periods := []Period{
		mustPeriod("covid", "2020-02-01", "2020-04-30"),
		mustPeriod("later", "2021-01-01", "2021-06-30"),
	}

	results, err := StressPeriods(table, periods, stattest.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 4) // periods × modes

	covid := results[0]
	assert.Equal(t, "covid", covid.Period.Name)
	assert.Equal(t, scenario.PseudoNormal(), covid.Mode)
	assert.Equal(t, 90, covid.Rows)
	assert.Equal(t, 4, covid.Violations)
	assert.InDelta(t, 4.0/90.0, covid.Rate, 1e-12)
	assert.InDelta(t, 0.05, covid.ExpectedRate, 1e-12)
	assert.Equal(t, stattest.NameKupiec, covid.Kupiec.Name)
	assert.Equal(t, "pseudorandom-normal", covid.Kupiec.Subject)
	assert.Equal(t, 2, covid.Conditional.DF)
	assert.Equal(t, 3, covid.Clusters.MaxLen)
	assert.Len(t, covid.Clusters.Stress, 1)

	sobol := results[1]
	assert.Equal(t, 0, sobol.Violations)
	assert.False(t, sobol.Empty())

	// no rows in 2021
	assert.True(t, results[2].Empty())
	assert.True(t, results[3].Empty())
}

func TestStressPeriods_InvalidPeriod(t *testing.T) {
	table := stressTable(10)
	_, err := StressPeriods(table, []Period{{Name: "x", Start: day("2020-02-01"), End: day("2020-01-01")}}, stattest.DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func testProblem() Problem {
	return Problem{
		Mean:    []float64{0.0005, 0.0002},
		Cov:     mat.NewSymDense(2, []float64{1e-4, 2e-5, 2e-5, 2e-4}),
		Weights: []float64{0.7, 0.3},
		Alpha:   0.95,
	}
}

func TestConvergence(t *testing.T) {
	cfg := DefaultConvergenceConfig(testProblem())
	cfg.SimCounts = []int{128, 4096}
	cfg.Modes = []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true)}
	cfg.Runs = 8
	cfg.ReferenceSims = 50000
	cfg.ReferenceRuns = 2

	steps := 0
	cfg.OnStep = func(done, total int) {
		steps++
		assert.Equal(t, 4, total)
	}

	res, err := NewRunner(nil, 7, 4).Convergence(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Points, 4)
	assert.Equal(t, 4, steps)
	require.Len(t, res.References, 1)
	assert.Equal(t, scenario.PseudoNormal(), res.References[0].Mode)
	assert.Less(t, res.References[0].CVaR, res.References[0].VaR)

	assert.Equal(t, 128, res.Points[0].NumSims)
	assert.Equal(t, scenario.Sobol(true), res.Points[1].Mode)

	// error shrinks with the scenario count for each mode
	for k := 0; k < 2; k++ {
		small, large := res.Points[k], res.Points[k+2]
		assert.Less(t, large.VaRRMSE, small.VaRRMSE, "%s", small.Mode)
		assert.Less(t, large.CVaRRMSE, small.CVaRRMSE, "%s", small.Mode)
	}
}

func TestConvergence_ReferencePerFamily(t *testing.T) {
	p := testProblem()
	p.Alpha = 0.99

	cfg := DefaultConvergenceConfig(p)
	cfg.SimCounts = []int{20000}
	cfg.Modes = []scenario.Mode{
		scenario.PseudoNormal(),
		scenario.StudentT(3),
		scenario.StudentTQuasi(3, scenario.KindSobol),
		scenario.Sobol(true),
	}
	cfg.Runs = 6
	cfg.ReferenceSims = 50000
	cfg.ReferenceRuns = 2

	res, err := NewRunner(nil, 11, 4).Convergence(context.Background(), cfg)
	require.NoError(t, err)

	// normal and t(3) references only, in first-use order
	require.Len(t, res.References, 2)
	normal, tdist := res.References[0], res.References[1]
	assert.Equal(t, scenario.PseudoNormal(), normal.Mode)
	assert.Equal(t, scenario.StudentT(3), tdist.Mode)
	// variance-normalized t(3) has the heavier 1% tail
	assert.Less(t, tdist.VaR, normal.VaR)

	for _, pt := range res.Points {
		ref, ok := res.Reference(pt.Mode)
		require.True(t, ok)
		assert.Equal(t, ref, pt.Reference)
	}
	assert.Equal(t, tdist, res.Points[1].Reference)
	assert.Equal(t, tdist, res.Points[2].Reference)
	assert.Equal(t, normal, res.Points[3].Reference)

	// a t mode scored against its own family: RMSE is sampling error, well
	// below the normal/t tail gap
	gap := normal.VaR - tdist.VaR
	assert.Less(t, res.Points[1].VaRRMSE, gap/2)
}

func TestConvergence_IndependentOfWorkers(t *testing.T) {
	cfg := DefaultConvergenceConfig(testProblem())
	cfg.SimCounts = []int{500}
	cfg.Modes = []scenario.Mode{scenario.Halton(true)}
	cfg.Runs = 6
	cfg.ReferenceSims = 2000
	cfg.ReferenceRuns = 1

	a, err := NewRunner(nil, 3, 1).Convergence(context.Background(), cfg)
	require.NoError(t, err)
	b, err := NewRunner(nil, 3, 6).Convergence(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.References, b.References)
	assert.Equal(t, a.Points[0].VaRRMSE, b.Points[0].VaRRMSE)
	assert.Equal(t, a.Points[0].Stats.VaRMean, b.Points[0].Stats.VaRMean)
}

func TestConvergence_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConvergenceConfig)
	}{
		{"no counts", func(c *ConvergenceConfig) { c.SimCounts = nil }},
		{"zero count", func(c *ConvergenceConfig) { c.SimCounts = []int{0} }},
		{"no modes", func(c *ConvergenceConfig) { c.Modes = nil }},
		{"bad mode", func(c *ConvergenceConfig) { c.Modes = []scenario.Mode{{}} }},
		{"one run", func(c *ConvergenceConfig) { c.Runs = 1 }},
		{"no reference", func(c *ConvergenceConfig) { c.ReferenceRuns = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConvergenceConfig(testProblem())
			tt.mutate(&cfg)
			_, err := NewRunner(nil, 1, 1).Convergence(context.Background(), cfg)
			assert.ErrorIs(t, err, riskerr.ErrConfiguration)
		})
	}
}

func TestVarianceReduction(t *testing.T) {
	cfg := DefaultVarianceReductionConfig(testProblem())
	cfg.NumSims = 2000
	cfg.Runs = 30
	cfg.BaseModes = []scenario.Mode{scenario.PseudoNormal()}

	rows, err := NewRunner(nil, 11, 4).VarianceReduction(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	base, anti, cv := rows[0], rows[1], rows[2]
	assert.Equal(t, TechniqueBaseline, base.Technique)
	assert.Equal(t, TechniqueAntithetic, anti.Technique)
	assert.Equal(t, TechniqueControlVariate, cv.Technique)

	assert.Equal(t, 0.0, base.VaRReduction)
	assert.Equal(t, 0.0, base.CVaRReduction)
	assert.Greater(t, base.Stats.VaRStd, 0.0)

	// the equal-weight control explains most of the portfolio variance
	assert.Less(t, cv.Stats.VaRStd, base.Stats.VaRStd)
	assert.Greater(t, cv.VaRReduction, 0.0)
	// and shrinks the tail toward the mean
	assert.Greater(t, cv.Stats.VaRMean, base.Stats.VaRMean)
}

func TestVarianceReduction_ReductionAgainstFirstBaseline(t *testing.T) {
	cfg := DefaultVarianceReductionConfig(testProblem())
	cfg.NumSims = 1000
	cfg.Runs = 10

	rows, err := NewRunner(nil, 5, 2).VarianceReduction(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	sobolBase := rows[3]
	assert.Equal(t, scenario.Sobol(true), sobolBase.Mode)
	assert.InDelta(t, reduction(sobolBase.Stats.VaRStd, rows[0].Stats.VaRStd), sobolBase.VaRReduction, 1e-12)
}

func TestVarianceReduction_Errors(t *testing.T) {
	cfg := DefaultVarianceReductionConfig(testProblem())
	cfg.Runs = 1
	_, err := NewRunner(nil, 1, 1).VarianceReduction(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultVarianceReductionConfig(testProblem())
	cfg.NumSims = 100
	cfg.Runs = 4
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRunner(nil, 1, 1).VarianceReduction(ctx, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReduction(t *testing.T) {
	assert.InDelta(t, 50.0, reduction(1, 2), 1e-12)
	assert.Equal(t, 0.0, reduction(1, 0))
	assert.InDelta(t, -100.0, reduction(2, 1), 1e-12)
}

func TestTiled(t *testing.T) {
	base := testProblem()

	sub := tiled(base, 1)
	assert.Equal(t, []float64{0.0005}, sub.Mean)
	assert.Equal(t, 1e-4, sub.Cov.At(0, 0))
	assert.Equal(t, []float64{1.0}, sub.Weights)

	p := tiled(base, 5)
	assert.Equal(t, []float64{0.0005, 0.0002, 0.0005, 0.0002, 0.0005}, p.Mean)
	assert.Equal(t, 5, p.Cov.SymmetricDim())
	v := 1.5e-4 // average base variance
	for i := 0; i < 5; i++ {
		assert.InDelta(t, v, p.Cov.At(i, i), 1e-18)
		assert.InDelta(t, 0.2, p.Weights[i], 1e-15)
		for j := i + 1; j < 5; j++ {
			assert.InDelta(t, 0.3*v, p.Cov.At(i, j), 1e-18)
		}
	}
	assert.Equal(t, base.Alpha, p.Alpha)
}

func TestScaledAndUniformCorrelation(t *testing.T) {
	base := testProblem()

	s := scaled(base, 2)
	assert.InDelta(t, 2e-4, s.Cov.At(0, 0), 1e-18)
	assert.InDelta(t, 4e-5, s.Cov.At(0, 1), 1e-18)
	assert.Equal(t, base.Mean, s.Mean)
	assert.Equal(t, []float64{0.5, 0.5}, s.Weights)
	// base untouched
	assert.Equal(t, 1e-4, base.Cov.At(0, 0))

	u := uniformCorrelation(base, 0.5)
	assert.InDelta(t, 1e-4, u.Cov.At(0, 0), 1e-18)
	assert.InDelta(t, 2e-4, u.Cov.At(1, 1), 1e-18)
	assert.InDelta(t, 0.5*0.01*0.0141421356, u.Cov.At(0, 1), 1e-9)
}

func TestBoundary(t *testing.T) {
	cfg := DefaultBoundaryConfig(testProblem())
	cfg.Dimensions = []int{2, 20, 30, 50}
	cfg.VolScales = []float64{0.5, 3}
	cfg.Correlations = []float64{0.1, 0.9}
	cfg.Modes = []scenario.Mode{scenario.PseudoNormal(), scenario.Sobol(true), scenario.Halton(true)}
	cfg.NumSims = 2048
	cfg.Runs = 8

	steps := 0
	cfg.OnStep = func(done, total int) {
		steps++
		assert.Equal(t, 24, total)
	}

	rows, err := NewRunner(nil, 13, 4).Boundary(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, rows, 24)
	assert.Equal(t, 24, steps)

	byAxis := map[Axis][]BoundaryRow{}
	for _, row := range rows {
		byAxis[row.Axis] = append(byAxis[row.Axis], row)
		assert.Less(t, row.Stats.CVaRMean, row.Stats.VaRMean, "%s=%v %s", row.Axis, row.Value, row.Mode)
		assert.Greater(t, row.Stats.VaRStd, 0.0)
	}
	require.Len(t, byAxis[AxisDimension], 12)
	require.Len(t, byAxis[AxisVolatility], 6)
	require.Len(t, byAxis[AxisCorrelation], 6)

	// baseline rows score 1; every quasi row carries a positive ratio
	for i, row := range rows {
		if i%3 == 0 {
			assert.Equal(t, scenario.PseudoNormal(), row.Mode)
			assert.Equal(t, 1.0, row.Efficiency)
		} else {
			assert.Greater(t, row.Efficiency, 0.0)
		}
	}

	// high dimensions run through Sobol and Halton alike
	dims := byAxis[AxisDimension]
	assert.Equal(t, 50, dims[len(dims)-1].Dim)
	assert.Equal(t, scenario.Halton(true), dims[len(dims)-1].Mode)

	// tripling the covariance widens the tail by √6 against 0.5
	vol := byAxis[AxisVolatility]
	assert.InDelta(t, math.Sqrt(6), vol[3].Stats.VaRMean/vol[0].Stats.VaRMean, 0.3)

	// stronger correlation, less diversification
	corr := byAxis[AxisCorrelation]
	assert.Less(t, corr[3].Stats.VaRMean, corr[0].Stats.VaRMean)
}

func TestBoundary_IndependentOfWorkers(t *testing.T) {
	cfg := DefaultBoundaryConfig(testProblem())
	cfg.Dimensions = []int{30}
	cfg.VolScales = nil
	cfg.Correlations = nil
	cfg.Modes = []scenario.Mode{scenario.Sobol(true)}
	cfg.NumSims = 500
	cfg.Runs = 5

	a, err := NewRunner(nil, 3, 1).Boundary(context.Background(), cfg)
	require.NoError(t, err)
	b, err := NewRunner(nil, 3, 5).Boundary(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, a[0].Stats.VaRMean, b[0].Stats.VaRMean)
	assert.Equal(t, a[0].Stats.VaRStd, b[0].Stats.VaRStd)
}

func TestBoundary_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BoundaryConfig)
	}{
		{"no base", func(c *BoundaryConfig) { c.Mean = nil }},
		{"nothing to sweep", func(c *BoundaryConfig) { c.Dimensions, c.VolScales, c.Correlations = nil, nil, nil }},
		{"zero dimension", func(c *BoundaryConfig) { c.Dimensions = []int{0} }},
		{"zero scale", func(c *BoundaryConfig) { c.VolScales = []float64{0} }},
		{"perfect correlation", func(c *BoundaryConfig) { c.Correlations = []float64{1} }},
		{"negative correlation", func(c *BoundaryConfig) { c.Correlations = []float64{-0.2} }},
		{"no modes", func(c *BoundaryConfig) { c.Modes = nil }},
		{"bad mode", func(c *BoundaryConfig) { c.Modes = []scenario.Mode{{}} }},
		{"one run", func(c *BoundaryConfig) { c.Runs = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBoundaryConfig(testProblem())
			tt.mutate(&cfg)
			_, err := NewRunner(nil, 1, 1).Boundary(context.Background(), cfg)
			assert.ErrorIs(t, err, riskerr.ErrConfiguration)
		})
	}
}

func TestEfficiency(t *testing.T) {
	assert.InDelta(t, 2.0, efficiency(2, 1), 1e-12)
	assert.Equal(t, 0.0, efficiency(1, 0))
}
