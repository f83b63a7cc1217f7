// Package scenario generates simulated multivariate return scenarios.
//
// ⭐ SSOT: mode dispatch happens only in Generator.Generate. All randomness
// (pseudorandom draws, scrambling) comes from the Generator's own source;
// there is no package-level random state.
package scenario

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/varreduce"
)

var (
	ErrDimensionMismatch       = riskerr.New(riskerr.ErrConfiguration, "mean length does not match covariance order")
	ErrNonPositiveDefinite     = riskerr.New(riskerr.ErrNumerical, "covariance is not positive definite")
	ErrInvalidMode             = riskerr.New(riskerr.ErrConfiguration, "invalid scenario mode")
	ErrInvalidDegreesOfFreedom = riskerr.New(riskerr.ErrConfiguration, "degrees of freedom must be > 0")
	ErrInvalidSimCount         = riskerr.New(riskerr.ErrConfiguration, "number of simulations must be >= 1")
	ErrDimensionUnsupported    = riskerr.New(riskerr.ErrConfiguration, "dimension not supported by sampling mode")
)

// Generator owns the seed, stream and RNG position used for every draw.
// Two generators built with the same (seed, stream) and fed the same calls
// return bit-identical matrices. A Generator is not safe for concurrent use;
// give each worker its own stream.
type Generator struct {
	seed   uint64
	stream uint64
	src    *rand.PCG
	rng    *rand.Rand
}

// NewGenerator 새 시나리오 생성기
func NewGenerator(seed, stream uint64) *Generator {
	src := rand.NewPCG(seed, stream)
	return &Generator{
		seed:   seed,
		stream: stream,
		src:    src,
		rng:    rand.New(src),
	}
}

// Seed returns the generator seed.
func (g *Generator) Seed() uint64 { return g.seed }

// Stream returns the generator stream id.
func (g *Generator) Stream() uint64 { return g.stream }

// DeriveStream mixes identifiers (window index, mode index, repetition, ...)
// into a stream id so parallel workers draw from unrelated sequences.
func DeriveStream(parts ...uint64) uint64 {
	h := uint64(0x9e3779b97f4a7c15)
	for _, p := range parts {
		h ^= p + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
		h = splitmix64(h)
	}
	return h
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Generate returns nSims × d simulated returns: mean + Z·Lᵗ, where Z holds
// standard (uncorrelated, unit-variance) variates drawn per mode and L is the
// Cholesky factor of cov.
func (g *Generator) Generate(mean []float64, cov mat.Symmetric, nSims int, mode Mode) (*mat.Dense, error) {
	return g.generate(mean, cov, nSims, mode, false)
}

// GenerateAntithetic draws ⌈nSims/2⌉ base rows, pairs every row Z with -Z
// before the mean/correlation mapping, and returns exactly nSims rows
// (odd nSims drops the last negated row).
func (g *Generator) GenerateAntithetic(mean []float64, cov mat.Symmetric, nSims int, mode Mode) (*mat.Dense, error) {
	return g.generate(mean, cov, nSims, mode, true)
}

func (g *Generator) generate(mean []float64, cov mat.Symmetric, nSims int, mode Mode, antithetic bool) (*mat.Dense, error) {
	d, err := validate(mean, cov, nSims, mode)
	if err != nil {
		return nil, err
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, ErrNonPositiveDefinite
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	rows := nSims
	if antithetic {
		rows = varreduce.AntitheticHalf(nSims)
	}

	z, err := g.base(rows, d, mode)
	if err != nil {
		return nil, err
	}
	if antithetic {
		z = varreduce.Antithetic(z).Slice(0, nSims, 0, d).(*mat.Dense)
	}

	out := mat.NewDense(nSims, d, nil)
	out.Mul(z, lower.T())
	for i := 0; i < nSims; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += mean[j]
		}
	}

	return out, nil
}

func validate(mean []float64, cov mat.Symmetric, nSims int, mode Mode) (int, error) {
	if err := mode.Validate(); err != nil {
		return 0, err
	}
	if nSims < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidSimCount, nSims)
	}
	if cov == nil {
		return 0, fmt.Errorf("%w: nil covariance", ErrDimensionMismatch)
	}
	r, c := cov.Dims()
	if r != c || len(mean) != r || r == 0 {
		return 0, fmt.Errorf("%w: mean=%d covariance=%dx%d", ErrDimensionMismatch, len(mean), r, c)
	}

	d := r
	if mode.quasiBase() == KindHalton && d > MaxHaltonDim {
		return 0, fmt.Errorf("%w: halton supports d <= %d, got %d", ErrDimensionUnsupported, MaxHaltonDim, d)
	}
	return d, nil
}

// base draws rows × d variates in standard space.
func (g *Generator) base(rows, d int, mode Mode) (*mat.Dense, error) {
	z := mat.NewDense(rows, d, nil)
	data := z.RawMatrix().Data

	switch mode.Kind {
	case KindPseudoNormal:
		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: g.src}
		for i := range data {
			data[i] = normal.Rand()
		}

	case KindSobol, KindHalton:
		u := g.uniform(rows, d, mode.Kind, mode.Scramble)
		for i, p := range u.RawMatrix().Data {
			data[i] = distuv.UnitNormal.Quantile(openUnit(p))
		}

	case KindStudentT:
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: mode.DF, Src: g.src}
		if b := mode.quasiBase(); b != 0 {
			u := g.uniform(rows, d, b, mode.Scramble)
			for i, p := range u.RawMatrix().Data {
				data[i] = t.Quantile(openUnit(p))
			}
		} else {
			for i := range data {
				data[i] = t.Rand()
			}
		}
		// Var(t_ν) = ν/(ν-2) → unit variance before correlating
		if mode.DF > 2 {
			z.Scale(math.Sqrt((mode.DF-2)/mode.DF), z)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode.Kind)
	}

	return z, nil
}

// uniform returns rows × d low-discrepancy points in (0,1)^d.
func (g *Generator) uniform(rows, d int, kind Kind, scramble bool) *mat.Dense {
	if kind == KindSobol {
		return sobolPoints(rows, d, scramble, g.rng)
	}
	return haltonPoints(rows, d, scramble, g.src)
}

// openUnit keeps p strictly inside (0,1) so inverse CDFs stay finite.
func openUnit(p float64) float64 {
	const tiny = 1.0 / (1 << 53)
	if p < tiny {
		return tiny
	}
	if p > 1-tiny {
		return 1 - tiny
	}
	return p
}

// PortfolioReturns projects each scenario row onto weights.
func PortfolioReturns(scenarios mat.Matrix, weights []float64) ([]float64, error) {
	n, d := scenarios.Dims()
	if len(weights) != d {
		return nil, fmt.Errorf("%w: weights=%d assets=%d", ErrDimensionMismatch, len(weights), d)
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(scenarios, mat.NewVecDense(d, weights))
	return out.RawVector().Data, nil
}
