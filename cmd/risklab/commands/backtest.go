package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risklab/internal/backtest"
	"github.com/wonny/aegis-risklab/internal/experiment"
	"github.com/wonny/aegis-risklab/internal/experimentconfig"
	"github.com/wonny/aegis-risklab/internal/market"
	"github.com/wonny/aegis-risklab/internal/report"
	"github.com/wonny/aegis-risklab/pkg/database"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Rolling-window VaR 백테스트 + 통계 검정",
	Long: `rolling window마다 평균/공분산을 추정하고 모드별 VaR/CVaR를 계산한 뒤
실현 수익률과 비교하여 위반 시계열을 검정합니다.

검정 항목:
- Kupiec unconditional coverage
- Christoffersen independence / conditional coverage
- 위반 군집 (stress cluster)
- McNemar (모드 쌍)
- Stress period별 재검정

Example:
  go run ./cmd/risklab backtest --config configs/kospi_mc_qmc.yaml
  go run ./cmd/risklab backtest --returns data/returns.csv --window 120 --sims 5000
  go run ./cmd/risklab backtest --config configs/kospi_mc_qmc.yaml --save`,
	RunE: runBacktest,
}

var (
	// Flags
	backtestWindow int
	backtestSims   int
	backtestSave   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().IntVar(&backtestWindow, "window", 0, "estimation window (0: config)")
	backtestCmd.Flags().IntVar(&backtestSims, "sims", 0, "scenarios per window and mode (0: config)")
	backtestCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the run to PostgreSQL (DATABASE_URL)")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if backtestWindow > 0 {
		s.exp.Backtest.Window = backtestWindow
	}
	if backtestSims > 0 {
		s.exp.Simulation.NumSims = backtestSims
	}

	cfg, err := s.exp.BacktestConfig(s.returns.Assets)
	if err != nil {
		return err
	}

	PrintHeader("VaR Backtest: " + s.exp.Meta.ExperimentID)
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s (%d rows)",
		s.returns.Dates[0].Format(market.DateLayout),
		s.returns.Dates[s.returns.Len()-1].Format(market.DateLayout),
		s.returns.Len()), 10)
	PrintKeyValue("Assets", fmt.Sprintf("%d", s.returns.Dim()), 10)
	PrintKeyValue("Alpha", fmt.Sprintf("%.2f", cfg.Alpha), 10)
	PrintKeyValue("Window", fmt.Sprintf("%d", cfg.Window), 10)
	PrintKeyValue("Sims", fmt.Sprintf("%d", cfg.NumSims), 10)
	PrintKeyValue("Workers", fmt.Sprintf("%d", cfg.Workers), 10)
	fmt.Fprintln(out)

	bar := newProgress(max(0, s.returns.Len()-cfg.Window), "windows")
	cfg.OnWindow = func(done, total int) { bar.Increment() }

	start := time.Now()
	tbl, runErr := backtest.NewEngine(s.log).Run(cmd.Context(), s.returns, cfg)
	bar.Finish()
	if runErr != nil {
		var werr *backtest.WindowError
		if !errors.As(runErr, &werr) || tbl == nil || tbl.Len() == 0 {
			return fmt.Errorf("backtest failed: %w", runErr)
		}
		// 부분 결과는 검정하되 실패는 그대로 반환
		PrintWarning(fmt.Sprintf("aborted at %s: evaluating %d completed rows",
			werr.Target.Format(market.DateLayout), tbl.Len()))
	}

	opts := s.exp.Options()
	summary, err := report.Summarize(tbl, opts)
	if err != nil {
		return err
	}
	periods, err := s.exp.Periods()
	if err != nil {
		return err
	}
	if summary.Stress, err = experiment.StressPeriods(tbl, periods, opts); err != nil {
		return err
	}

	printSummary(summary)
	printStress(summary.Stress)
	if runErr == nil {
		PrintSuccess(fmt.Sprintf("Backtest completed in %.2fs", time.Since(start).Seconds()))
	}

	if backtestSave {
		id, err := saveRun(cmd, s, tbl, summary)
		if err != nil {
			return err
		}
		PrintSuccess("Saved run " + id)
	}

	return runErr
}

func saveRun(cmd *cobra.Command, s *session, tbl *backtest.Table, summary *report.Summary) (string, error) {
	db, err := database.New(s.cfg)
	if err != nil {
		return "", fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	snapshot, err := experimentconfig.NewRunSnapshot(s.exp, s.yaml)
	if err != nil {
		return "", err
	}

	repo := report.NewRepository(db)
	if err := repo.EnsureSchema(cmd.Context()); err != nil {
		return "", err
	}
	id, err := repo.SaveRun(cmd.Context(), &report.Run{Snapshot: snapshot, Table: tbl, Summary: summary})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func printSummary(s *report.Summary) {
	tw := newTable(
		fmt.Sprintf("Coverage %s ~ %s (%d rows)", s.From.Format(market.DateLayout), s.To.Format(market.DateLayout), s.Rows),
		table.Row{"Mode", "Viol.", "Rate", "Mean VaR", "Mean CVaR", "Kupiec p", "", "Indep. p", "", "CC p", "", "Clusters", "Max", "Stress"},
	)
	for _, m := range s.Modes {
		tw.AppendRow(table.Row{
			m.Mode.Label(), m.Violations, pct(m.Rate), ret(m.MeanVaR), ret(m.MeanCVaR),
			pval(m.Kupiec.PValue), decision(m.Kupiec),
			pval(m.Independence.PValue), decision(m.Independence.Record),
			pval(m.Conditional.PValue), decision(m.Conditional),
			m.Clusters.Count, m.Clusters.MaxLen, len(m.Clusters.Stress),
		})
	}
	tw.AppendFooter(table.Row{"expected", "", pct(1 - s.Alpha)})
	tw.Render()

	if len(s.Pairs) == 0 {
		return
	}
	pw := newTable("McNemar (paired violations)", table.Row{"Pair", "Both", "Only A", "Only B", "χ²", "p", ""})
	for _, p := range s.Pairs {
		pw.AppendRow(table.Row{p.Subject, p.BothFail, p.OnlyA, p.OnlyB, fmt.Sprintf("%.3f", p.Statistic), pval(p.PValue), decision(p.Record)})
	}
	pw.Render()
}

func printStress(results []experiment.PeriodResult) {
	if len(results) == 0 {
		return
	}
	tw := newTable("Stress periods", table.Row{"Period", "Mode", "Rows", "Viol.", "Rate", "Kupiec p", "", "CC p", ""})
	last := ""
	for _, r := range results {
		if last != "" && r.Period.Name != last {
			tw.AppendSeparator()
		}
		last = r.Period.Name
		if r.Empty() {
			tw.AppendRow(table.Row{r.Period.Name, r.Mode.Label(), 0, "-", "-", "-", "", "-", ""})
			continue
		}
		tw.AppendRow(table.Row{
			r.Period.Name, r.Mode.Label(), r.Rows, r.Violations, pct(r.Rate),
			pval(r.Kupiec.PValue), decision(r.Kupiec),
			pval(r.Conditional.PValue), decision(r.Conditional),
		})
	}
	tw.Render()
}
