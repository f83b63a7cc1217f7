package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/wonny/aegis-risklab/internal/scenario"
)

// modesCmd lists the recognized scenario modes
var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "지원하는 시나리오 모드와 별칭 출력",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		tw := newTable("Scenario modes", table.Row{"Name", "Aliases", "Label", "Notes"})
		for _, m := range modeCatalog {
			tw.AppendRow(table.Row{m.mode.String(), m.aliases, m.mode.Label(), m.notes})
		}
		tw.Render()
	},
}

var modeCatalog = []struct {
	mode    scenario.Mode
	aliases string
	notes   string
}{
	{scenario.PseudoNormal(), "mc, normal", "pseudorandom multivariate normal"},
	{scenario.Sobol(true), "sobol, qmc-sobol", "scrambled; append :unscrambled for plain"},
	{scenario.Halton(true), "halton, qmc-halton", "scrambled; append :unscrambled for plain"},
	{scenario.StudentT(5), "t[df]", "pseudorandom Student-t, df > 2"},
	{scenario.StudentTQuasi(5, scenario.KindSobol), "t[df]+sobol", "Student-t on Sobol points"},
	{scenario.StudentTQuasi(5, scenario.KindHalton), "t[df]+halton", "Student-t on Halton points"},
}

func init() {
	rootCmd.AddCommand(modesCmd)
}
