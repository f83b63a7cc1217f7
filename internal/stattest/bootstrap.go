package stattest

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
)

// ErrInvalidBootstrap bad repetition count or inputs.
var ErrInvalidBootstrap = riskerr.New(riskerr.ErrConfiguration, "invalid bootstrap configuration")

// Percentile bounds of the 95% interval.
const (
	lowerPercentile = 2.5
	upperPercentile = 97.5
)

// CI percentile interval over bootstrap repetitions.
type CI struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"` // population
}

// Width Upper - Lower
func (c CI) Width() float64 { return c.Upper - c.Lower }

// Overlap length of the shared part of two intervals, 0 when disjoint.
func (c CI) Overlap(o CI) float64 {
	return math.Max(0, math.Min(c.Upper, o.Upper)-math.Max(c.Lower, o.Lower))
}

// Disjoint reports non-overlapping intervals. A heuristic signal of a
// difference between modes, not a formal test.
func (c CI) Disjoint(o CI) bool {
	return c.Upper < o.Lower || o.Upper < c.Lower
}

// Interval bootstrap intervals for one mode.
type Interval struct {
	Mode        scenario.Mode `json:"mode"`
	VaR         CI            `json:"var"`
	CVaR        CI            `json:"cvar"`
	Repetitions int           `json:"repetitions"`
}

// BootstrapConfig re-simulates one fixed (mean, cov) Repetitions times.
type BootstrapConfig struct {
	Mean        []float64
	Cov         mat.Symmetric
	Weights     []float64
	Sampling    risk.Sampling
	Alpha       float64
	Repetitions int // default 100
	Seed        uint64
	Workers     int // <= 0 → GOMAXPROCS
}

// Bootstrap draws fresh scenario sets and reports the 2.5/97.5 percentile
// intervals of VaR and CVaR. Repetition r uses stream (r, mode), so the
// result does not depend on Workers.
func Bootstrap(ctx context.Context, cfg BootstrapConfig) (Interval, error) {
	if cfg.Repetitions < 2 {
		return Interval{}, fmt.Errorf("%w: repetitions must be >= 2, got %d", ErrInvalidBootstrap, cfg.Repetitions)
	}
	if err := checkAlpha(cfg.Alpha); err != nil {
		return Interval{}, err
	}
	if err := cfg.Sampling.Mode.Validate(); err != nil {
		return Interval{}, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	vars := make([]float64, cfg.Repetitions)
	cvars := make([]float64, cfg.Repetitions)
	key := cfg.Sampling.Mode.StreamKey()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for r := 0; r < cfg.Repetitions; r++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gen := scenario.NewGenerator(cfg.Seed, scenario.DeriveStream(uint64(r), key))
			res, err := risk.Simulate(gen, cfg.Mean, cfg.Cov, cfg.Weights, cfg.Sampling, cfg.Alpha)
			if err != nil {
				return fmt.Errorf("bootstrap repetition %d: %w", r, err)
			}
			vars[r], cvars[r] = res.VaR, res.CVaR
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Interval{}, err
	}

	return Interval{
		Mode:        cfg.Sampling.Mode,
		VaR:         percentileCI(vars),
		CVaR:        percentileCI(cvars),
		Repetitions: cfg.Repetitions,
	}, nil
}

func percentileCI(values []float64) CI {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(values, nil)
	return CI{
		Lower:  risk.Percentile(sorted, lowerPercentile),
		Upper:  risk.Percentile(sorted, upperPercentile),
		Mean:   mean,
		StdDev: std,
	}
}
