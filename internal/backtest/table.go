package backtest

import (
	"time"

	"github.com/wonny/aegis-risklab/internal/scenario"
)

// Estimate per-mode risk estimate for one date
type Estimate struct {
	VaR  float64 `json:"var"`
	CVaR float64 `json:"cvar"`
}

// Row one backtest date. Estimates is indexed like Table.Modes.
type Row struct {
	Index     int        `json:"index"` // row index t in the return table
	Date      time.Time  `json:"date"`
	Actual    float64    `json:"actual"` // realized portfolio return at t
	Estimates []Estimate `json:"estimates"`
}

// Violated reports actual < VaR for mode k.
// ⭐ SSOT: violation은 저장하지 않고 항상 (actual, VaR)에서 파생
func (r Row) Violated(k int) bool {
	return r.Actual < r.Estimates[k].VaR
}

// Table chronological backtest output, one row per t ∈ [W, T).
type Table struct {
	Alpha   float64         `json:"alpha"`
	Window  int             `json:"window"`
	NumSims int             `json:"num_sims"`
	Modes   []scenario.Mode `json:"modes"`
	Rows    []Row           `json:"rows"`
}

// Len number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ModeIndex position of m in Modes, or -1.
func (t *Table) ModeIndex(m scenario.Mode) int {
	for i, mode := range t.Modes {
		if mode == m {
			return i
		}
	}
	return -1
}

// Violations 0/1 indicator series for mode k, in date order.
func (t *Table) Violations(k int) []int {
	out := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		if r.Violated(k) {
			out[i] = 1
		}
	}
	return out
}

// Actuals realized portfolio returns in date order.
func (t *Table) Actuals() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Actual
	}
	return out
}

// VaRs VaR series for mode k.
func (t *Table) VaRs(k int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Estimates[k].VaR
	}
	return out
}

// Slice returns rows [from, to) as a table sharing the row data.
func (t *Table) Slice(from, to int) *Table {
	from = max(0, min(from, len(t.Rows)))
	to = max(from, min(to, len(t.Rows)))

	out := *t
	out.Rows = t.Rows[from:to]
	return &out
}

// Between returns the rows dated within [start, end] (inclusive).
func (t *Table) Between(start, end time.Time) *Table {
	from := len(t.Rows)
	for i, r := range t.Rows {
		if !r.Date.Before(start) {
			from = i
			break
		}
	}
	to := from
	for to < len(t.Rows) && !t.Rows[to].Date.After(end) {
		to++
	}
	return t.Slice(from, to)
}
