package backtest

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-risklab/internal/riskerr"
)

// ErrInvalidConfig backtest configuration rejected before any window runs
var ErrInvalidConfig = riskerr.New(riskerr.ErrConfiguration, "invalid backtest config")

// WindowError reports the window that aborted a run.
// The table returned alongside it holds every row before Index.
type WindowError struct {
	Index  int       // row index t whose estimate failed
	Target time.Time // date t
	From   time.Time // first date of the estimation window (t-W)
	To     time.Time // last date of the estimation window (t-1)
	Mode   string    // failing mode, empty if estimation itself failed
	Err    error
}

func (e *WindowError) Error() string {
	where := fmt.Sprintf("window [%s, %s] for %s",
		e.From.Format("2006-01-02"), e.To.Format("2006-01-02"), e.Target.Format("2006-01-02"))
	if e.Mode != "" {
		where += " mode " + e.Mode
	}
	return fmt.Sprintf("backtest aborted at %s: %v", where, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }
