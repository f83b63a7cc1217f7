package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risklab/internal/experiment"
)

// convergenceCmd represents the convergence command
var convergenceCmd = &cobra.Command{
	Use:   "convergence",
	Short: "시나리오 수 대비 VaR/CVaR 수렴 속도 비교",
	Long: `전체 표본 평균/공분산을 고정하고 시나리오 수를 늘려가며 모드별
VaR/CVaR의 평균, 표준편차, reference 대비 RMSE를 측정합니다.
reference는 같은 분포(정규 / 같은 df의 Student-t)의 대량 pseudorandom 실행입니다.

Example:
  go run ./cmd/risklab convergence --config configs/kospi_mc_qmc.yaml`,
	RunE: runConvergence,
}

func init() {
	rootCmd.AddCommand(convergenceCmd)
}

func runConvergence(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	p, err := s.problem()
	if err != nil {
		return err
	}
	cfg, err := s.exp.ConvergenceConfig(p)
	if err != nil {
		return err
	}

	PrintHeader("Convergence")
	PrintKeyValue("Sim counts", fmt.Sprintf("%v", cfg.SimCounts), 12)
	PrintKeyValue("Runs", fmt.Sprintf("%d", cfg.Runs), 12)
	PrintKeyValue("Reference", fmt.Sprintf("%d x %d", cfg.ReferenceRuns, cfg.ReferenceSims), 12)
	fmt.Fprintln(out)

	bar := newProgress(len(cfg.SimCounts)*len(cfg.Modes), "points")
	cfg.OnStep = func(done, total int) { bar.Increment() }

	runner := experiment.NewRunner(s.log, s.exp.Simulation.Seed, s.exp.Simulation.Workers)
	res, err := runner.Convergence(cmd.Context(), cfg)
	bar.Finish()
	if err != nil {
		return err
	}

	for _, ref := range res.References {
		PrintKeyValue("Ref "+ref.Mode.Label(), fmt.Sprintf("VaR %s / CVaR %s", ret(ref.VaR), ret(ref.CVaR)), 12)
	}
	fmt.Fprintln(out)

	tw := newTable("Convergence vs large-sample reference",
		table.Row{"Sims", "Mode", "VaR mean", "VaR std", "VaR RMSE", "CVaR mean", "CVaR std", "CVaR RMSE", "Time/run"},
	)
	last := 0
	for _, pt := range res.Points {
		if last != 0 && pt.NumSims != last {
			tw.AppendSeparator()
		}
		last = pt.NumSims
		tw.AppendRow(table.Row{
			pt.NumSims, pt.Mode.Label(),
			ret(pt.Stats.VaRMean), ret(pt.Stats.VaRStd), ret(pt.VaRRMSE),
			ret(pt.Stats.CVaRMean), ret(pt.Stats.CVaRStd), ret(pt.CVaRRMSE),
			pt.Stats.Elapsed.String(),
		})
	}
	tw.Render()
	return nil
}
