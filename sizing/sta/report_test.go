package sta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/gatesizer/sizing"
	"github.com/inference-sim/gatesizer/sizing/netlist"
)

func TestParseWNS(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"wns -0.12\n", -0.12},
		{"wns max -0.12\n", -0.12},
		{"worst slack 0.30\n", 0.30},
		{"wns 12.5\n", 12.5},
		{"Warning: something\nwns 0.00\n", 0},
		{"WNS -1e-2", -0.01},
	}
	for _, tt := range tests {
		got, err := ParseWNS(tt.text)
		require.NoError(t, err, tt.text)
		assert.InDelta(t, tt.want, got, 1e-12, tt.text)
	}
}

func TestParseTNS(t *testing.T) {
	got, err := ParseTNS("tns max -3.5e-1\n")
	require.NoError(t, err)
	assert.InDelta(t, -0.35, got, 1e-12)

	got, err = ParseTNS("total negative slack -4.25\n")
	require.NoError(t, err)
	assert.InDelta(t, -4.25, got, 1e-12)
}

func TestParseMetric_MissingValue(t *testing.T) {
	_, err := ParseWNS("Error: design not linked.\n")
	assert.Error(t, err)
	_, err = ParseTNS("")
	assert.Error(t, err)
}

const reportNetlist = `module gcd (clk, a, z);
  input clk;
  input a;
  output z;
  wire n1;
  wire n2;
  wire n3;
  DFF_X1 r0 (.D(n3), .CK(clk), .Q(n1));
  INV_X1 u1 (.A(n1), .ZN(n2));
  NAND2_X1 u2 (.A1(n2), .A2(a), .ZN(n3));
  BUF_X2 u3 (.A(n2), .Z(z));
endmodule
`

const detailedReport = `Startpoint: r0 (rising edge-triggered flip-flop clocked by clk)
Endpoint: r0 (rising edge-triggered flip-flop clocked by clk)
Path Group: clk
Path Type: max

Fanout     Cap    Slew   Delay    Time   Description
-----------------------------------------------------------------------------
                          0.00    0.00   clock clk (rise edge)
                          0.00    0.00   clock network delay (ideal)
                  0.00    0.00    0.00 ^ r0/CK (DFF_X1)
                  0.02    0.09    0.09 v r0/Q (DFF_X1)
     2    0.00                           n1 (net)
                  0.02    0.00    0.09 v u1/A (INV_X1)
                  0.03    0.04    0.13 ^ u1/ZN (INV_X1)
     2    0.01                           n2 (net)
                  0.03    0.00    0.13 ^ u2/A1 (NAND2_X1)
                  0.05    0.06    0.19 v u2/ZN (NAND2_X1)
     1    0.00                           n3 (net)
                  0.05    0.00    0.19 v r0/D (DFF_X1)
                                  0.19   data arrival time

                          0.20    0.20   clock clk (rise edge)
                          0.00    0.20   clock network delay (ideal)
                          0.00    0.20   clock reconvergence pessimism
                                  0.20 ^ r0/CK (DFF_X1)
                         -0.04    0.16   library setup time
                                  0.16   data required time
-----------------------------------------------------------------------------
                                  0.16   data required time
                                 -0.19   data arrival time
-----------------------------------------------------------------------------
                                 -0.03   slack (VIOLATED)


Startpoint: r0 (rising edge-triggered flip-flop clocked by clk)
Endpoint: z (output port clocked by clk)
Path Group: clk
Path Type: max

Fanout     Cap    Slew   Delay    Time   Description
-----------------------------------------------------------------------------
                          0.00    0.00   clock clk (rise edge)
                          0.00    0.00   clock network delay (ideal)
                  0.00    0.00    0.00 ^ r0/CK (DFF_X1)
                  0.02    0.09    0.09 v r0/Q (DFF_X1)
     2    0.00                           n1 (net)
                  0.02    0.00    0.09 v u1/A (INV_X1)
                  0.03    0.04    0.13 ^ u1/ZN (INV_X1)
     2    0.01                           n2 (net)
                  0.03    0.00    0.13 ^ u3/A (BUF_X2)
                  0.01    0.03    0.16 ^ u3/Z (BUF_X2)
     1    0.00                           z (net)
                  0.01    0.00    0.16 ^ z (out)
                                  0.16   data arrival time

                          0.20    0.20   clock clk (rise edge)
                          0.00    0.20   clock network delay (ideal)
                          0.00    0.20   output external delay
                                  0.20   data required time
-----------------------------------------------------------------------------
                                  0.20   data required time
                                 -0.16   data arrival time
-----------------------------------------------------------------------------
                                  0.04   slack (MET)
`

func parseReportNetlist(t *testing.T) *netlist.Netlist {
	t.Helper()
	nl, err := netlist.Parse(reportNetlist, netlist.DefaultSuffix)
	require.NoError(t, err)
	require.Equal(t, 4, nl.Len())
	return nl
}

func TestParseDetailed_PerInstanceTiming(t *testing.T) {
	// GIVEN two paths sharing r0 and u1
	nl := parseReportNetlist(t)

	// WHEN the report is parsed
	got, err := ParseDetailed(strings.NewReader(detailedReport), nl, sizing.DefaultCellClassifier())
	require.NoError(t, err)

	// THEN every instance on a path gets the worst slack of its paths
	want := map[string]sizing.TimingSample{
		"r0": {Delay: 0.09, Slew: 0.05, Slack: -0.03, Fanin: 1, Fanout: 2, Role: sizing.RoleSequential},
		"u1": {Delay: 0.04, Slew: 0.03, Slack: -0.03, Fanin: 1, Fanout: 2, Role: sizing.RoleMiddle},
		"u2": {Delay: 0.06, Slew: 0.05, Slack: -0.03, Fanin: 1, Fanout: 1, Role: sizing.RoleMiddle},
		"u3": {Delay: 0.03, Slew: 0.03, Slack: 0.04, Fanin: 1, Fanout: 1, Role: sizing.RoleBufferClockEnd},
	}
	require.Len(t, got, len(want))
	for name, w := range want {
		g, ok := got[name]
		require.True(t, ok, name)
		assert.InDelta(t, w.Delay, g.Delay, 1e-12, name)
		assert.InDelta(t, w.Slew, g.Slew, 1e-12, name)
		assert.InDelta(t, w.Slack, g.Slack, 1e-12, name)
		assert.Equal(t, w.Fanin, g.Fanin, name)
		assert.Equal(t, w.Fanout, g.Fanout, name)
		assert.Equal(t, w.Role, g.Role, name)
	}
}

func TestParseDetailed_IgnoresUnknownInstances(t *testing.T) {
	// GIVEN a netlist that no longer contains u3
	src := strings.Replace(reportNetlist, "  BUF_X2 u3 (.A(n2), .Z(z));\n", "", 1)
	nl, err := netlist.Parse(src, netlist.DefaultSuffix)
	require.NoError(t, err)

	got, err := ParseDetailed(strings.NewReader(detailedReport), nl, sizing.DefaultCellClassifier())
	require.NoError(t, err)

	// THEN u3 is absent and the rest are still reported
	_, ok := got["u3"]
	assert.False(t, ok)
	assert.Len(t, got, 3)
}

func TestParseDetailed_NoCompletePath(t *testing.T) {
	nl := parseReportNetlist(t)
	for name, text := range map[string]string{
		"empty":     "",
		"no paths":  "No paths found.\n",
		"truncated": detailedReport[:strings.Index(detailedReport, "data arrival time")],
	} {
		got, err := ParseDetailed(strings.NewReader(text), nl, sizing.DefaultCellClassifier())
		require.NoError(t, err, name)
		assert.Nil(t, got, name)
	}
}
