// Package experiment runs the research experiments built on the backtest
// table and the scenario pipeline: stress-period backtests, convergence of
// the estimators with the scenario count, and variance-reduction comparisons.
package experiment

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-risklab/internal/backtest"
	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/internal/stattest"
)

// ErrInvalidPeriod end before start or empty name.
var ErrInvalidPeriod = riskerr.New(riskerr.ErrConfiguration, "invalid stress period")

// Period named calendar range, inclusive on both ends.
type Period struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod parses YYYY-MM-DD bounds.
func NewPeriod(name, start, end string) (Period, error) {
	s, err := time.Parse(market.DateLayout, start)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %s start: %v", ErrInvalidPeriod, name, err)
	}
	e, err := time.Parse(market.DateLayout, end)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %s end: %v", ErrInvalidPeriod, name, err)
	}
	p := Period{Name: name, Start: s, End: e}
	return p, p.Validate()
}

// Validate checks name and ordering.
func (p Period) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidPeriod)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidPeriod, p.Name)
	}
	return nil
}

func mustPeriod(name, start, end string) Period {
	p, err := NewPeriod(name, start, end)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPeriods Korean market stress episodes.
func DefaultPeriods() []Period {
	return []Period{
		mustPeriod("COVID-19 Crash", "2020-02-01", "2020-04-30"),
		mustPeriod("Legoland Crisis", "2022-09-01", "2022-12-31"),
		mustPeriod("Rate Surge 2023", "2023-01-01", "2023-06-30"),
	}
}

// PeriodResult backtest evaluation of one mode inside one period.
type PeriodResult struct {
	Period       Period                 `json:"period"`
	Mode         scenario.Mode          `json:"mode"`
	Rows         int                    `json:"rows"`
	Violations   int                    `json:"violations"`
	Rate         float64                `json:"rate"`
	ExpectedRate float64                `json:"expected_rate"`
	Kupiec       stattest.Record        `json:"kupiec"`
	Independence stattest.Record        `json:"independence"`
	Conditional  stattest.Record        `json:"conditional"`
	Clusters     stattest.ClusterReport `json:"clusters"`
}

// Empty no backtest rows fell inside the period; tests were not run.
func (r PeriodResult) Empty() bool { return r.Rows == 0 }

// StressPeriods evaluates every mode of table inside each period.
// Periods without rows yield an Empty result instead of an error.
func StressPeriods(table *backtest.Table, periods []Period, opts stattest.Options) ([]PeriodResult, error) {
	out := make([]PeriodResult, 0, len(periods)*len(table.Modes))
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		sub := table.Between(p.Start, p.End)

		for k, mode := range table.Modes {
			res := PeriodResult{
				Period:       p,
				Mode:         mode,
				Rows:         sub.Len(),
				ExpectedRate: 1 - table.Alpha,
			}
			if sub.Len() == 0 {
				out = append(out, res)
				continue
			}

			series := sub.Violations(k)
			if err := evaluate(&res, series, table.Alpha, opts); err != nil {
				return nil, fmt.Errorf("%s / %s: %w", p.Name, mode, err)
			}
			out = append(out, res)
		}
	}
	return out, nil
}

func evaluate(res *PeriodResult, series []int, alpha float64, opts stattest.Options) error {
	subject := res.Mode.String()

	uc, err := stattest.Kupiec(series, alpha, opts)
	if err != nil {
		return err
	}
	ind, err := stattest.Christoffersen(series, opts)
	if err != nil {
		return err
	}
	cc, err := stattest.ConditionalCoverage(series, alpha, opts)
	if err != nil {
		return err
	}
	clusters, err := stattest.Clusters(series, opts)
	if err != nil {
		return err
	}

	res.Violations = clusters.Violations
	res.Rate = float64(clusters.Violations) / float64(len(series))
	res.Kupiec = uc.For(subject)
	res.Independence = ind.Record.For(subject)
	res.Conditional = cc.For(subject)
	res.Clusters = clusters
	return nil
}
