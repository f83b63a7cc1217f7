package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile  string
	envFile     string
	verbose     bool
	returnsPath string
	weightsSpec string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "risklab",
	Short: "MC vs QMC 포트폴리오 VaR/CVaR 백테스트",
	Long: `risklab Unified CLI

포트폴리오 VaR/CVaR를 pseudorandom / Sobol / Halton 시나리오로 추정하고
rolling-window 백테스트와 통계 검정(Kupiec, Christoffersen, McNemar)으로 비교합니다.

Usage:
  go run ./cmd/risklab [command]

Examples:
  go run ./cmd/risklab backtest --config configs/kospi_mc_qmc.yaml
  go run ./cmd/risklab backtest --returns data/returns.csv --save
  go run ./cmd/risklab bootstrap --config configs/kospi_mc_qmc.yaml
  go run ./cmd/risklab boundary --axis dimension --dims 20,30,50
  go run ./cmd/risklab modes`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Ctrl-C cancels the command context; engines stop between windows.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "experiment YAML file (default: RISK_* environment)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", ".env file to load (default: ./.env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&returnsPath, "returns", "", "returns CSV (overrides data.returns_csv)")
	rootCmd.PersistentFlags().StringVar(&weightsSpec, "weights", "", "ASSET=W,... (default: config holdings or equal weight)")
}
