package experiment

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/pkg/logger"
)

// ErrInvalidConfig experiment configuration cannot run.
var ErrInvalidConfig = riskerr.New(riskerr.ErrConfiguration, "invalid experiment configuration")

// Problem fixed (mean, cov, weights, alpha) every repetition re-simulates.
type Problem struct {
	Mean    []float64
	Cov     mat.Symmetric
	Weights []float64
	Alpha   float64
}

// Runner executes simulation experiments
type Runner struct {
	logger  *logger.Logger
	seed    uint64
	workers int
}

// NewRunner creates a runner. workers <= 0 → GOMAXPROCS.
func NewRunner(log *logger.Logger, seed uint64, workers int) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{
		logger:  log.Component("experiment"),
		seed:    seed,
		workers: workers,
	}
}

// Stats 반복 실행 요약
type Stats struct {
	VaRMean  float64       `json:"var_mean"`
	VaRStd   float64       `json:"var_std"` // population
	CVaRMean float64       `json:"cvar_mean"`
	CVaRStd  float64       `json:"cvar_std"`
	Elapsed  time.Duration `json:"elapsed"` // mean per run
}

// repeat runs Simulate `runs` times; run r draws from stream (r, parts...).
// Results are indexed by r, so they do not depend on the worker count.
func (r *Runner) repeat(ctx context.Context, p Problem, s risk.Sampling, runs int, parts ...uint64) ([]risk.Result, time.Duration, error) {
	results := make([]risk.Result, runs)
	elapsed := make([]time.Duration, runs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < runs; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			stream := scenario.DeriveStream(append([]uint64{uint64(i)}, parts...)...)
			res, err := risk.Simulate(scenario.NewGenerator(r.seed, stream), p.Mean, p.Cov, p.Weights, s, p.Alpha)
			if err != nil {
				return err
			}
			results[i] = res
			elapsed[i] = time.Since(start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var total time.Duration
	for _, d := range elapsed {
		total += d
	}
	return results, total / time.Duration(runs), nil
}

func summarize(results []risk.Result, elapsed time.Duration) Stats {
	vars, cvars := split(results)
	vm, vs := stat.PopMeanStdDev(vars, nil)
	cm, cs := stat.PopMeanStdDev(cvars, nil)
	return Stats{VaRMean: vm, VaRStd: vs, CVaRMean: cm, CVaRStd: cs, Elapsed: elapsed}
}

func split(results []risk.Result) (vars, cvars []float64) {
	vars = make([]float64, len(results))
	cvars = make([]float64, len(results))
	for i, res := range results {
		vars[i], cvars[i] = res.VaR, res.CVaR
	}
	return vars, cvars
}
