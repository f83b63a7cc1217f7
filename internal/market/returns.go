// Package market holds the date-indexed asset return table fed to the
// backtest engine and the per-window distribution estimate.
package market

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/aegis-risklab/internal/riskerr"
)

var (
	ErrEmptyTable      = riskerr.New(riskerr.ErrData, "return table is empty")
	ErrMisalignedDates = riskerr.New(riskerr.ErrData, "dates are not strictly increasing")
	ErrBadValue        = riskerr.New(riskerr.ErrData, "return value is missing or not finite")
	ErrShortHistory    = riskerr.New(riskerr.ErrData, "insufficient history for window")
	ErrWeightMismatch  = riskerr.New(riskerr.ErrConfiguration, "weights length does not match asset count")
)

// DateLayout 입력 CSV 날짜 형식
const DateLayout = "2006-01-02"

// Returns is a T × d table of per-asset log returns.
// Rows are strictly increasing in date; the table is read-only once built
// and safe to share across workers.
type Returns struct {
	Dates  []time.Time
	Assets []string
	Values *mat.Dense
}

// NewReturns builds and validates a table.
func NewReturns(dates []time.Time, assets []string, values *mat.Dense) (*Returns, error) {
	r := &Returns{Dates: dates, Assets: assets, Values: values}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks shape, date order and finiteness.
func (r *Returns) Validate() error {
	if r == nil || r.Values == nil || len(r.Dates) == 0 {
		return ErrEmptyTable
	}
	rows, cols := r.Values.Dims()
	if rows != len(r.Dates) {
		return fmt.Errorf("%w: %d dates for %d rows", ErrMisalignedDates, len(r.Dates), rows)
	}
	if cols != len(r.Assets) {
		return fmt.Errorf("%w: %d assets for %d columns", ErrMisalignedDates, len(r.Assets), cols)
	}
	for i := 1; i < len(r.Dates); i++ {
		if !r.Dates[i].After(r.Dates[i-1]) {
			return fmt.Errorf("%w: %s after %s", ErrMisalignedDates,
				r.Dates[i].Format(DateLayout), r.Dates[i-1].Format(DateLayout))
		}
	}
	for i := 0; i < rows; i++ {
		for j, v := range r.Values.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s %s", ErrBadValue, r.Dates[i].Format(DateLayout), r.Assets[j])
			}
		}
	}
	return nil
}

// Len number of observations T.
func (r *Returns) Len() int { return len(r.Dates) }

// Dim number of assets d.
func (r *Returns) Dim() int { return len(r.Assets) }

// Window returns rows [from, to) as a view sharing the backing data.
func (r *Returns) Window(from, to int) (*mat.Dense, error) {
	if from < 0 || to > r.Len() || to-from < 2 {
		return nil, fmt.Errorf("%w: rows [%d,%d) of %d", ErrShortHistory, from, to, r.Len())
	}
	return r.Values.Slice(from, to, 0, r.Dim()).(*mat.Dense), nil
}

// PortfolioReturn realized portfolio return at row t.
func (r *Returns) PortfolioReturn(t int, weights []float64) float64 {
	return mat.Dot(mat.NewVecDense(len(weights), weights), r.Values.RowView(t))
}

// Between returns the row range [from, to) whose dates fall in [start, end] (inclusive).
func (r *Returns) Between(start, end time.Time) (int, int) {
	from := len(r.Dates)
	for i, d := range r.Dates {
		if !d.Before(start) {
			from = i
			break
		}
	}
	to := from
	for to < len(r.Dates) && !r.Dates[to].After(end) {
		to++
	}
	return from, to
}

// Restrict returns the rows dated within [start, end] as a new table sharing
// the backing data. A zero start or end leaves that side unbounded.
func (r *Returns) Restrict(start, end time.Time) (*Returns, error) {
	if end.IsZero() {
		end = r.Dates[len(r.Dates)-1]
	}
	from, to := r.Between(start, end)
	if from == to {
		return nil, fmt.Errorf("%w: no rows between %s and %s", ErrEmptyTable,
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return &Returns{
		Dates:  r.Dates[from:to],
		Assets: r.Assets,
		Values: r.Values.Slice(from, to, 0, r.Dim()).(*mat.Dense),
	}, nil
}
