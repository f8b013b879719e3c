package cmd

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
	"github.com/inference-sim/gatesizer/sizing/trace"
)

// styles renders headings and verdicts. The zero value renders plain text.
type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	muted lipgloss.Style
}

func plainStyles() styles {
	s := lipgloss.NewStyle()
	return styles{title: s, label: s, good: s, bad: s, muted: s}
}

// stylesFor returns colored styles when w is a terminal.
func stylesFor(w io.Writer) styles {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return plainStyles()
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("#20B9B4")),
		good:  lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7")),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54")),
	}
}

func (s styles) status(st sizing.Status) string {
	switch st {
	case sizing.StatusImproved, sizing.StatusMaintained:
		return s.good.Render(string(st))
	case sizing.StatusUnavailable:
		return s.muted.Render(string(st))
	default:
		return s.bad.Render(string(st))
	}
}

func formatCost(c float64) string {
	if math.IsInf(c, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.6f", c)
}

// writeRunSummary prints the outcome of an annealing run and the nominal comparison.
func writeRunSummary(w io.Writer, s styles, res *sizing.Result, cmp sizing.Comparison, bestPath string) {
	var b strings.Builder
	fmt.Fprintln(&b, s.title.Render("=== Simulated Annealing Summary ==="))
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Stop reason:      "), res.StopReason)
	fmt.Fprintf(&b, "%s %.6f\n", s.label.Render("Final temperature:"), res.FinalTemperature)
	fmt.Fprintf(&b, "%s %d (accepted %d, rejected %d, infeasible %d, skipped %d)\n",
		s.label.Render("Iterations:       "), res.Iterations, res.Accepted, res.Rejected, res.Infeasible, res.Skipped)
	fmt.Fprintf(&b, "%s %s\n", s.label.Render("Baseline cost:    "), formatCost(res.BaselineEval.Cost))
	fmt.Fprintf(&b, "%s %s (%d improvements)\n", s.label.Render("Best cost:        "), formatCost(res.BestCost), res.Improvements)
	if bestPath != "" {
		fmt.Fprintf(&b, "%s %s\n", s.label.Render("Best netlist:     "), bestPath)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, s.title.Render("=== Nominal Timing: Baseline vs Best ==="))
	writeNominal(&b, s, "Baseline", cmp.Baseline)
	writeNominal(&b, s, "Best    ", cmp.Best)
	if cmp.WNSStatus == sizing.StatusUnavailable {
		fmt.Fprintf(&b, "  WNS difference: n/a\n  TNS difference: n/a\n")
	} else {
		fmt.Fprintf(&b, "  WNS difference: %+.4f ns (%s)\n", cmp.WNSDiff, s.status(cmp.WNSStatus))
		fmt.Fprintf(&b, "  TNS difference: %+.4f ns (%s)\n", cmp.TNSDiff, s.status(cmp.TNSStatus))
	}
	io.WriteString(w, b.String())
}

func writeNominal(b *strings.Builder, s styles, name string, e sizing.Evaluation) {
	if !e.Feasible {
		fmt.Fprintf(b, "  %s %s\n", name, s.bad.Render("nominal STA failed"))
		return
	}
	fmt.Fprintf(b, "  %s WNS = %+.4f ns, TNS = %+.4f ns\n", name, e.MeanWNS, e.MeanTNS)
}

// writeChanges lists the instances whose size differs from the baseline.
func writeChanges(w io.Writer, s styles, changes []netlist.Change) {
	var b strings.Builder
	fmt.Fprintln(&b, s.title.Render(fmt.Sprintf("=== Resized Instances (%d) ===", len(changes))))
	if len(changes) == 0 {
		fmt.Fprintln(&b, s.muted.Render("  <no changes>"))
	}
	for _, c := range changes {
		fmt.Fprintf(&b, "  %-24s %s%d -> %s%d\n", c.Name, c.Family, c.From, c.Family, c.To)
	}
	io.WriteString(w, b.String())
}

// writeYieldSummary prints a Monte Carlo timing-yield report.
func writeYieldSummary(w io.Writer, s styles, rep sizing.YieldReport) {
	var b strings.Builder
	fmt.Fprintln(&b, s.title.Render("=== Monte Carlo Summary ==="))
	n := len(rep.Trials)
	fmt.Fprintf(&b, "Successful runs: %d/%d\n", rep.Successful, n)
	if rep.Successful == 0 {
		fmt.Fprintln(&b, s.bad.Render("No valid STA runs completed."))
		io.WriteString(w, b.String())
		return
	}
	fmt.Fprintf(&b, "Average WNS:     %.4f ns (StdDev: %.4f)\n", rep.MeanWNS, rep.StdWNS)
	fmt.Fprintf(&b, "Min WNS:         %.4f ns\n", rep.MinWNS)
	fmt.Fprintf(&b, "Average TNS:     %.4f ns\n", rep.MeanTNS)
	fmt.Fprintf(&b, "Worst TNS:       %.4f ns\n", rep.MinTNS)
	verdict := s.good
	if rep.Passed < n {
		verdict = s.bad
	}
	fmt.Fprintf(&b, "Timing yield (WNS>=0 & TNS>=0): %s\n",
		verdict.Render(fmt.Sprintf("%d/%d = %.2f%%", rep.Passed, n, rep.Yield())))
	io.WriteString(w, b.String())
}

// writeTraceSummary prints aggregate statistics of a decision trace.
func writeTraceSummary(w io.Writer, s styles, sum *trace.TraceSummary) {
	var b strings.Builder
	fmt.Fprintln(&b, s.title.Render("=== Trace Summary ==="))
	fmt.Fprintf(&b, "Iterations: %d (accepted %d, rejected %d, infeasible %d, skipped %d)\n",
		sum.TotalIterations, sum.AcceptedCount, sum.RejectedCount, sum.InfeasibleCount, sum.SkippedCount)
	fmt.Fprintf(&b, "New bests: %d\n", sum.NewBestCount)
	fmt.Fprintf(&b, "Acceptance rate: %.2f%%\n", 100*sum.AcceptanceRate)
	fmt.Fprintf(&b, "Mean mutations per candidate: %.2f\n", sum.MeanMutations)
	fmt.Fprintf(&b, "Distinct instances resized in accepted moves: %d\n", sum.UniqueInstances)
	io.WriteString(w, b.String())
}
