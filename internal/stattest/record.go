// Package stattest evaluates violation indicator series: coverage,
// independence, conditional coverage, clustering, paired comparison and
// bootstrap intervals.
//
// Degenerate but valid outcomes (no violations, no discordant pairs) never
// return an error; likelihood terms go through numsafe with one epsilon.
package stattest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wonny/aegis-risklab/internal/numsafe"
	"github.com/wonny/aegis-risklab/internal/riskerr"
)

// Test names
const (
	NameKupiec              = "kupiec_uc"
	NameChristoffersen      = "christoffersen_ind"
	NameConditionalCoverage = "conditional_coverage"
	NameMcNemar             = "mcnemar"
)

var (
	ErrEmptySeries      = riskerr.New(riskerr.ErrData, "violation series is empty")
	ErrInvalidIndicator = riskerr.New(riskerr.ErrData, "violation series must contain only 0 and 1")
	ErrLengthMismatch   = riskerr.New(riskerr.ErrData, "paired series differ in length")
	ErrInvalidAlpha     = riskerr.New(riskerr.ErrConfiguration, "alpha must be in (0,1)")
)

// Options 검정 공통 설정
type Options struct {
	Significance     float64 // reject when p < Significance (0.05)
	Epsilon          float64 // log(0) guard (numsafe.DefaultEpsilon)
	StressClusterMin int     // run length flagged as stress cluster (3)
}

// DefaultOptions returns 0.05 / 1e-10 / 3.
func DefaultOptions() Options {
	return Options{
		Significance:     0.05,
		Epsilon:          numsafe.DefaultEpsilon,
		StressClusterMin: 3,
	}
}

func (o Options) guard() numsafe.Guard {
	return numsafe.Guard{Epsilon: o.Epsilon}
}

func (o Options) threshold() float64 {
	if !(o.Significance > 0 && o.Significance < 1) {
		return 0.05
	}
	return o.Significance
}

// Record one test outcome. Immutable once built.
type Record struct {
	Name      string  `json:"name"`
	Subject   string  `json:"subject,omitempty"` // mode or mode pair
	Statistic float64 `json:"statistic"`
	DF        int     `json:"df"`
	PValue    float64 `json:"p_value"`
	Threshold float64 `json:"threshold"`
	Reject    bool    `json:"reject"`
}

// Decision 사람이 읽는 판정
func (r Record) Decision() string {
	if r.Reject {
		return "reject"
	}
	return "fail to reject"
}

// For returns a copy of r attributed to subject.
func (r Record) For(subject string) Record {
	r.Subject = subject
	return r
}

// newRecord builds a χ²(df) record. Negative rounding noise in a
// likelihood-ratio statistic is clamped to 0.
func newRecord(name string, statistic float64, df int, opts Options) Record {
	statistic = math.Max(0, statistic)
	p := ChiSquaredPValue(statistic, df)
	th := opts.threshold()
	return Record{
		Name:      name,
		Statistic: statistic,
		DF:        df,
		PValue:    p,
		Threshold: th,
		Reject:    p < th,
	}
}

// ChiSquaredPValue upper-tail probability 1 - F(x) of χ²(df).
func ChiSquaredPValue(x float64, df int) float64 {
	return distuv.ChiSquared{K: float64(df)}.Survival(x)
}

func checkSeries(series []int) error {
	if len(series) == 0 {
		return ErrEmptySeries
	}
	for i, v := range series {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: index %d = %d", ErrInvalidIndicator, i, v)
		}
	}
	return nil
}

func checkAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("%w: %v", ErrInvalidAlpha, alpha)
	}
	return nil
}

func count(series []int) int {
	k := 0
	for _, v := range series {
		k += v
	}
	return k
}
