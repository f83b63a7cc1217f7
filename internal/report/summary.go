// Package report assembles backtest tables and test outcomes into the
// summary handed to reporting collaborators, and persists runs.
package report

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-risklab/internal/backtest"
	"github.com/wonny/aegis-risklab/internal/experiment"
	"github.com/wonny/aegis-risklab/internal/risk"
	"github.com/wonny/aegis-risklab/internal/riskerr"
	"github.com/wonny/aegis-risklab/internal/scenario"
	"github.com/wonny/aegis-risklab/internal/stattest"
)

// ErrEmptyTable nothing to summarize.
var ErrEmptyTable = riskerr.New(riskerr.ErrData, "backtest table has no rows")

// =============================================================================
// Report Types
// =============================================================================

// ModeSummary 모드별 백테스트 검정 결과
type ModeSummary struct {
	Mode         scenario.Mode               `json:"mode"`
	Rows         int                         `json:"rows"`
	Violations   int                         `json:"violations"`
	Rate         float64                     `json:"rate"`
	ExpectedRate float64                     `json:"expected_rate"`
	MeanVaR      float64                     `json:"mean_var"`
	MeanCVaR     float64                     `json:"mean_cvar"`
	Kupiec       stattest.Record             `json:"kupiec"`
	Independence stattest.IndependenceResult `json:"independence"`
	Conditional  stattest.Record             `json:"conditional"`
	Clusters     stattest.ClusterReport      `json:"clusters"`
	Interval     *stattest.Interval          `json:"bootstrap,omitempty"`
}

// Summary 백테스트 전체 요약
type Summary struct {
	Alpha      float64                   `json:"alpha"`
	Convention string                    `json:"var_convention"`
	Window     int                       `json:"window"`
	NumSims    int                       `json:"num_sims"`
	From       time.Time                 `json:"from"`
	To         time.Time                 `json:"to"`
	Rows       int                       `json:"rows"`
	Modes      []ModeSummary             `json:"modes"`
	Pairs      []stattest.PairedResult   `json:"pairs"`
	Stress     []experiment.PeriodResult `json:"stress,omitempty"`
}

// =============================================================================
// Report Generation
// =============================================================================

// Summarize runs the coverage, independence and clustering tests for every
// mode and McNemar for every mode pair.
// ⭐ 계산은 stattest에서, 조립만 여기서
func Summarize(table *backtest.Table, opts stattest.Options) (*Summary, error) {
	if table == nil || table.Len() == 0 {
		return nil, ErrEmptyTable
	}

	s := &Summary{
		Alpha:      table.Alpha,
		Convention: risk.VaRConvention,
		Window:     table.Window,
		NumSims:    table.NumSims,
		From:       table.Rows[0].Date,
		To:         table.Rows[table.Len()-1].Date,
		Rows:       table.Len(),
	}

	series := make([][]int, len(table.Modes))
	for k, mode := range table.Modes {
		series[k] = table.Violations(k)
		ms, err := summarizeMode(table, k, series[k], opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", mode, err)
		}
		s.Modes = append(s.Modes, ms)
	}

	for i := 0; i < len(table.Modes); i++ {
		for j := i + 1; j < len(table.Modes); j++ {
			res, err := stattest.McNemar(series[i], series[j], opts)
			if err != nil {
				return nil, err
			}
			res.Record = res.Record.For(PairSubject(table.Modes[i], table.Modes[j]))
			s.Pairs = append(s.Pairs, res)
		}
	}

	return s, nil
}

func summarizeMode(table *backtest.Table, k int, series []int, opts stattest.Options) (ModeSummary, error) {
	mode := table.Modes[k]
	subject := mode.String()

	uc, err := stattest.Kupiec(series, table.Alpha, opts)
	if err != nil {
		return ModeSummary{}, err
	}
	ind, err := stattest.Christoffersen(series, opts)
	if err != nil {
		return ModeSummary{}, err
	}
	cc, err := stattest.ConditionalCoverage(series, table.Alpha, opts)
	if err != nil {
		return ModeSummary{}, err
	}
	clusters, err := stattest.Clusters(series, opts)
	if err != nil {
		return ModeSummary{}, err
	}
	ind.Record = ind.Record.For(subject)

	cvars := make([]float64, table.Len())
	for i, r := range table.Rows {
		cvars[i] = r.Estimates[k].CVaR
	}

	return ModeSummary{
		Mode:         mode,
		Rows:         table.Len(),
		Violations:   clusters.Violations,
		Rate:         float64(clusters.Violations) / float64(table.Len()),
		ExpectedRate: 1 - table.Alpha,
		MeanVaR:      risk.Mean(table.VaRs(k)),
		MeanCVaR:     risk.Mean(cvars),
		Kupiec:       uc.For(subject),
		Independence: ind,
		Conditional:  cc.For(subject),
		Clusters:     clusters,
	}, nil
}

// PairSubject subject label of a paired comparison.
func PairSubject(a, b scenario.Mode) string {
	return a.String() + " vs " + b.String()
}

// AttachInterval stores a bootstrap interval on the matching mode.
func (s *Summary) AttachInterval(iv stattest.Interval) bool {
	for i := range s.Modes {
		if s.Modes[i].Mode == iv.Mode {
			ivCopy := iv
			s.Modes[i].Interval = &ivCopy
			return true
		}
	}
	return false
}

// Records every test record in report order: per mode UC, IND, CC, then
// pairs, then stress periods.
func (s *Summary) Records() []stattest.Record {
	out := make([]stattest.Record, 0, 3*len(s.Modes)+len(s.Pairs)+3*len(s.Stress))
	for _, m := range s.Modes {
		out = append(out, m.Kupiec, m.Independence.Record, m.Conditional)
	}
	for _, p := range s.Pairs {
		out = append(out, p.Record)
	}
	for _, p := range s.Stress {
		if p.Empty() {
			continue
		}
		prefix := p.Period.Name + ": "
		out = append(out,
			p.Kupiec.For(prefix+p.Kupiec.Subject),
			p.Independence.For(prefix+p.Independence.Subject),
			p.Conditional.For(prefix+p.Conditional.Subject),
		)
	}
	return out
}
