package sta

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inference-sim/gatesizer/sizing"
)

// Report file names written by the run script inside the scratch directory.
const (
	timingReport = "timing.txt"
	wnsReport    = "wns.txt"
	tnsReport    = "tns.txt"
	scriptFile   = "run.tcl"
	derateFile   = "derate.tcl"
	netlistFile  = "netlist.v"
	logFile      = "sta.log"
)

// WriteDerate writes the late cell-delay and cell-check derates as a Tcl snippet.
func WriteDerate(w io.Writer, d sizing.Derate) error {
	_, err := fmt.Fprintf(w,
		"# Generated derates: cell_delay=%.4f cell_check=%.4f\n"+
			"set_timing_derate -late -cell_delay %.4f\n"+
			"set_timing_derate -late -cell_check %.4f\n",
		d.CellDelay, d.CellCheck, d.CellDelay, d.CellCheck)
	return err
}

// ScriptInputs are the absolute paths referenced by one run script.
type ScriptInputs struct {
	Liberty   string
	Netlist   string
	Design    string
	SDC       string
	SPEF      string // empty to skip parasitics
	Derate    string // empty to skip derating
	PathCount int    // detailed paths per group; 0 keeps the tool default
}

// WriteScript writes the OpenSTA command script that produces the three reports.
func WriteScript(w io.Writer, in ScriptInputs) error {
	var b strings.Builder
	b.WriteString("# Generated by gate-sizer\n")
	fmt.Fprintf(&b, "read_liberty %s\n", tclQuote(in.Liberty))
	fmt.Fprintf(&b, "read_verilog %s\n", tclQuote(in.Netlist))
	fmt.Fprintf(&b, "link_design %s\n", tclQuote(in.Design))
	fmt.Fprintf(&b, "read_sdc %s\n", tclQuote(in.SDC))
	if in.SPEF != "" {
		fmt.Fprintf(&b, "read_spef %s\n", tclQuote(in.SPEF))
	}
	if in.Derate != "" {
		fmt.Fprintf(&b, "source %s\n", tclQuote(in.Derate))
	}
	b.WriteString("report_checks -path_delay max -sort_by_slack -format full_clock_expanded")
	b.WriteString(" -fields {slew cap input_pins nets fanout}")
	if in.PathCount > 0 {
		fmt.Fprintf(&b, " -group_path_count %d", in.PathCount)
	}
	fmt.Fprintf(&b, " > %s\n", timingReport)
	fmt.Fprintf(&b, "report_wns > %s\n", wnsReport)
	fmt.Fprintf(&b, "report_tns > %s\n", tnsReport)
	b.WriteString("exit\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// tclQuote brace-quotes words containing characters special to Tcl.
func tclQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"{}[]$;\\") {
		return s
	}
	return "{" + s + "}"
}

func writeFileWith(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
