// Package testutil provides shared test infrastructure for the gate sizer:
// a deterministic timing oracle and netlist/constraint fixtures used across
// the sizing and sizing/sta test packages.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
)

// OracleFunc computes the result of one fake oracle call. call is 1-based.
type OracleFunc func(call int, nl *netlist.Netlist, d sizing.Derate) (*sizing.TimingResult, error)

// FakeOracle is a deterministic sizing.TimingOracle. Safe for concurrent use.
type FakeOracle struct {
	Fn OracleFunc

	mu      sync.Mutex
	calls   int
	derates []sizing.Derate
}

// Evaluate implements sizing.TimingOracle. A canceled ctx yields an *OracleFailure.
func (f *FakeOracle) Evaluate(ctx context.Context, nl *netlist.Netlist, _ sizing.Constraints, d sizing.Derate) (*sizing.TimingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &sizing.OracleFailure{Reason: sizing.FailureCanceled, Err: err}
	}
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.derates = append(f.derates, d)
	fn := f.Fn
	f.mu.Unlock()
	if fn == nil {
		return &sizing.TimingResult{}, nil
	}
	return fn(call, nl, d)
}

// Calls returns the number of Evaluate calls so far.
func (f *FakeOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Derates returns the derates seen so far, in call order.
func (f *FakeOracle) Derates() []sizing.Derate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sizing.Derate, len(f.derates))
	copy(out, f.derates)
	return out
}

// Constant always reports the same WNS and TNS without per-instance detail.
func Constant(wns, tns float64) OracleFunc {
	return func(int, *netlist.Netlist, sizing.Derate) (*sizing.TimingResult, error) {
		return &sizing.TimingResult{WNS: wns, TNS: tns}, nil
	}
}

// FailOn wraps fn and fails the given 1-based calls with a process failure.
func FailOn(fn OracleFunc, calls ...int) OracleFunc {
	fail := make(map[int]bool, len(calls))
	for _, c := range calls {
		fail[c] = true
	}
	return func(call int, nl *netlist.Netlist, d sizing.Derate) (*sizing.TimingResult, error) {
		if fail[call] {
			return nil, &sizing.OracleFailure{Reason: sizing.FailureProcess, Detail: "scripted failure"}
		}
		return fn(call, nl, d)
	}
}

// Always fails every call with the given reason.
func Always(reason sizing.FailureReason) OracleFunc {
	return func(int, *netlist.Netlist, sizing.Derate) (*sizing.TimingResult, error) {
		return nil, &sizing.OracleFailure{Reason: reason, Detail: "scripted failure"}
	}
}

// SizeDriven models a design whose slack improves with total drive strength:
// WNS = base + step*sum(sizes), scaled by the cell-delay derate. Every instance
// gets a sample carrying the global slack.
func SizeDriven(base, step float64) OracleFunc {
	return func(_ int, nl *netlist.Netlist, d sizing.Derate) (*sizing.TimingResult, error) {
		total := 0
		samples := make(map[string]sizing.TimingSample, nl.Len())
		for _, inst := range nl.Instances() {
			total += inst.Size
		}
		wns := (base + step*float64(total)) * d.CellDelay
		for _, inst := range nl.Instances() {
			samples[inst.Name] = sizing.TimingSample{Slack: wns, Role: sizing.RoleMiddle}
		}
		tns := min(wns, 0) * float64(nl.Len())
		return &sizing.TimingResult{WNS: wns, TNS: tns, Samples: samples}, nil
	}
}

// Constraints writes placeholder SDC and Liberty files and returns constraints referencing them.
func Constraints(t testing.TB) sizing.Constraints {
	t.Helper()
	dir := t.TempDir()
	sdc := filepath.Join(dir, "design.sdc")
	lib := filepath.Join(dir, "cells.lib")
	for path, content := range map[string]string{
		sdc: "create_clock -name clk -period 1.0 [get_ports clk]\n",
		lib: "library (cells) {}\n",
	} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing fixture %s: %v", path, err)
		}
	}
	return sizing.Constraints{Design: "gcd", SDC: sdc, Liberty: lib}
}

// ParseNetlist parses src with the default suffix or fails the test.
func ParseNetlist(t testing.TB, src string) *netlist.Netlist {
	t.Helper()
	nl, err := netlist.Parse(src, netlist.DefaultSuffix)
	if err != nil {
		t.Fatalf("parsing fixture netlist: %v", err)
	}
	return nl
}

// ChainNetlist is a small design with one instance per line and a shared line
// holding two instances (u4 and u5).
const ChainNetlist = `module chain (clk, a, z);
  input clk;
  input a;
  output z;
  DFF_X1 r0 (.D(a), .CK(clk), .Q(n0));
  INV_X1 u1 (.A(n0), .ZN(n1));
  NAND2_X1 u2 (.A1(n1), .A2(a), .ZN(n2));
  BUF_X1 u3 (.A(n2), .Z(n3));
  INV_X2 u4 (.A(n3), .ZN(n4)); INV_X2 u5 (.A(n4), .ZN(n5));
  AND2_X1 u6 (.A1(n5), .A2(a), .ZN(z));
endmodule
`
