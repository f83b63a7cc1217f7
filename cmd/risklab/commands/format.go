package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/wonny/aegis-risklab/internal/stattest"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var out io.Writer = os.Stdout

// newTable table writer with the shared style
func newTable(title string, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Title.Align = text.AlignCenter
	tw.SetTitle("%s", title)
	tw.AppendHeader(header)
	return tw
}

// newProgress progress bar on stderr, so tables on stdout stay clean
func newProgress(total int, label string) *pb.ProgressBar {
	bar := pb.Full.New(total)
	bar.SetWriter(os.Stderr)
	bar.SetTemplateString(`{{ string . "label" | green }} {{ counters . }} {{ bar . }} {{ percent . }} {{ etime . }} {{ rtime . "ETA %s" }}`)
	bar.Set("label", label)
	return bar.Start()
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
}

// PrintHeader prints a command header
func PrintHeader(title string) {
	fmt.Fprintln(out)
	PrintDoubleSeparator()
	fmt.Fprintf(out, "  %s\n", title)
	PrintDoubleSeparator()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(out, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintf(out, "✅ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(out, "⚠️  %s\n", message)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func ret(v float64) string {
	return fmt.Sprintf("%+.4f%%", v*100)
}

func pval(p float64) string {
	if p < 1e-4 {
		return fmt.Sprintf("%.2e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

func decision(rec stattest.Record) string {
	if rec.Reject {
		return text.FgRed.Sprint("REJECT")
	}
	return text.FgGreen.Sprint("ok")
}
