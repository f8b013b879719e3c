package netlist

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gcdNetlist = `// Generated by yosys
/* multi-line
   header comment INV_X1 fake (.A(x)); */
module gcd (clk, req_val, resp_val);
  input clk;
  input req_val;
  output resp_val;
  wire _000_;
  wire _001_;
  wire \dpath/a_reg[3] ;

  (* src = "gcd.v:12" *)
  DFF_X1 _120_ (.D(_000_),
    .CK(clk),
    .Q(resp_val));
  INV_X1 _121_ (.A(req_val), .ZN(_000_));
  NAND2_X2 _122_ ( .A1(_000_), .A2(\dpath/a_reg[3] ), .ZN(_001_) );
  BUF_X8 _123_ (.A(_001_), .Z(\dpath/a_reg[3] )); INV_X4 _124_ (.A(_001_), .ZN());
  gcd_ctrl ctrl (.clk(clk), .val({_000_, _001_}));
  assign resp_val = _001_;
endmodule
`

func parseGCD(t *testing.T) *Netlist {
	t.Helper()
	n, err := Parse(gcdNetlist, DefaultSuffix)
	require.NoError(t, err)
	return n
}

func TestParse_FindsSizedInstances(t *testing.T) {
	n := parseGCD(t)

	require.Equal(t, 5, n.Len())
	assert.Empty(t, n.Skipped)

	names := make([]string, 0, n.Len())
	for _, inst := range n.Instances() {
		names = append(names, inst.Name)
	}
	assert.Equal(t, []string{"_120_", "_121_", "_122_", "_123_", "_124_"}, names)

	dff, ok := n.Instance("_120_")
	require.True(t, ok)
	assert.Equal(t, "DFF_X", dff.Family)
	assert.Equal(t, 1, dff.Size)
	assert.Equal(t, 13, dff.Line)
	assert.Equal(t, []Port{{Pin: "D", Net: "_000_"}, {Pin: "CK", Net: "clk"}, {Pin: "Q", Net: "resp_val"}}, dff.Ports)

	nand, _ := n.Instance("_122_")
	assert.Equal(t, "NAND2_X", nand.Family)
	assert.Equal(t, 2, nand.Size)
	assert.Equal(t, `\dpath/a_reg[3]`, nand.Ports[1].Net)

	inv4, _ := n.Instance("_124_")
	assert.Equal(t, Port{Pin: "ZN"}, inv4.Ports[1])

	_, ok = n.Instance("ctrl")
	assert.False(t, ok, "plain module instances are not gate instances")
	_, ok = n.Instance("fake")
	assert.False(t, ok, "instances inside comments are ignored")
}

func TestSerialize_RoundTripsUntouchedText(t *testing.T) {
	inputs := map[string]string{
		"gcd":        gcdNetlist,
		"crlf":       strings.ReplaceAll(gcdNetlist, "\n", "\r\n"),
		"empty":      "",
		"no trailer": "module m(a);\n  INV_X1 u1 (.A(a), .ZN(b));\nendmodule",
		"directives": "`timescale 1ns/1ps\n`define W 4\nmodule m;\n  BUF_X2 b0 (a, b);\nendmodule\n",
	}
	for name, src := range inputs {
		t.Run(name, func(t *testing.T) {
			n, err := Parse(src, DefaultSuffix)
			require.NoError(t, err)
			if diff := cmp.Diff(src, n.Serialize()); diff != "" {
				t.Errorf("Serialize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResize_ChangesOnlySizeDigits(t *testing.T) {
	n := parseGCD(t)
	rules := DefaultRuleTable()

	require.NoError(t, n.Resize("_123_", 16, rules))
	require.NoError(t, n.Resize("_121_", 2, rules))

	want := strings.Replace(gcdNetlist, "BUF_X8 _123_", "BUF_X16 _123_", 1)
	want = strings.Replace(want, "INV_X1 _121_", "INV_X2 _121_", 1)
	if diff := cmp.Diff(want, n.Serialize()); diff != "" {
		t.Errorf("Serialize mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, n.Serialize(), "header comment INV_X1 fake", "comment text must not change")
}

func TestResize_RejectsIllegalTargets(t *testing.T) {
	n := parseGCD(t)
	rules := DefaultRuleTable()

	tests := []struct {
		name     string
		instance string
		size     int
	}{
		{"not in target set", "_121_", 8},
		{"same size", "_121_", 1},
		{"unknown instance", "nope", 2},
		{"sequential jump", "_120_", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.Resize(tt.instance, tt.size, rules)
			var sizeErr *InvalidSizeError
			require.True(t, errors.As(err, &sizeErr), "got %v", err)
			assert.Equal(t, tt.instance, sizeErr.Instance)
		})
	}
	assert.Equal(t, gcdNetlist, n.Serialize(), "failed resizes must not modify the netlist")
}

func TestResize_ReparseRecoversNewSize(t *testing.T) {
	n := parseGCD(t)
	require.NoError(t, n.Resize("_122_", 4, DefaultRuleTable()))

	again, err := Parse(n.Serialize(), DefaultSuffix)
	require.NoError(t, err)
	inst, ok := again.Instance("_122_")
	require.True(t, ok)
	assert.Equal(t, 4, inst.Size)
	assert.Equal(t, again.Serialize(), n.Serialize(), "re-parse must be idempotent")
}

func TestRuleTable_Closure(t *testing.T) {
	rules := DefaultRuleTable()
	for _, family := range rules.FamilyNames() {
		for size := range rules.Families[family] {
			for _, target := range rules.Targets(family, size) {
				src := family + strconv.Itoa(size) + " u1 (.A(a), .Z(z));\n"
				n, err := Parse(src, rules.Suffix)
				require.NoError(t, err)
				require.Equal(t, 1, n.Len(), "family %s%d must tokenize", family, size)
				require.NoError(t, n.Resize("u1", target, rules))

				again, err := Parse(n.Serialize(), rules.Suffix)
				require.NoError(t, err)
				inst, ok := again.Instance("u1")
				require.True(t, ok)
				assert.Equal(t, family, inst.Family)
				assert.Equal(t, target, inst.Size, "%s%d -> %d", family, size, target)
			}
		}
	}
}

func TestParse_AmbiguousDeclarationsAreSkipped(t *testing.T) {
	src := `module m(a, b);
  INV_X1 u1 (.A(a), .ZN(b));
  INV_X1 #(.W(2)) u2 (.A(a), .ZN(b));
  INV_X1 u3 (.A(a), .ZN(b)), u4 (.A(b), .ZN(a));
  INV_X1 u5 [3:0] (.A(a), .ZN(b));
  INV_X1 (.A(a), .ZN(b));
  NAND2_X1 u6 (.A1(a), .A2((b), .ZN(c));
  INV_X1 u1 (.A(b), .ZN(a));
  BUF_X1 u7 (.A(a) .Z(b));
  BUF_X2 u8 (.A(a), .Z(b));
endmodule
`
	n, err := Parse(src, DefaultSuffix)
	require.NoError(t, err)

	assert.Equal(t, 2, n.Len())
	_, ok := n.Instance("u8")
	assert.True(t, ok, "declarations after ambiguous ones are still parsed")

	reasons := make([]string, 0, len(n.Skipped))
	for _, perr := range n.Skipped {
		reasons = append(reasons, perr.Reason)
	}
	assert.Equal(t, []string{
		"parameter override on sized cell",
		"multiple instances in one statement",
		"instance arrays are not supported",
		"missing instance name",
		"unbalanced parentheses",
		`duplicate instance name "u1"`,
		"malformed named connection",
	}, reasons)
	assert.Equal(t, 3, n.Skipped[0].Line)
	assert.Equal(t, src, n.Serialize())
}

func TestParse_UnreadableInputFails(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated block comment", "module m;\n/* never closed\nINV_X1 u1 (.A(a));"},
		{"unterminated string", "(* src = \"gcd.v *)\nINV_X1 u1 (.A(a));"},
		{"escaped identifier at eof", "wire \\foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src, DefaultSuffix)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
		})
	}
}

func TestClone_IsIndependent(t *testing.T) {
	n := parseGCD(t)
	c := n.Clone()
	require.NoError(t, c.Resize("_121_", 2, DefaultRuleTable()))

	orig, _ := n.Instance("_121_")
	assert.Equal(t, 1, orig.Size)
	assert.Equal(t, gcdNetlist, n.Serialize())

	changes := c.ChangedFrom(n)
	assert.Equal(t, []Change{{Name: "_121_", Family: "INV_X", From: 1, To: 2}}, changes)
}

func TestWriteFile_ReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "best.v")

	n := parseGCD(t)
	require.NoError(t, n.Resize("_123_", 4, DefaultRuleTable()))
	require.NoError(t, n.WriteFile(path))

	back, err := ReadFile(path, DefaultSuffix)
	require.NoError(t, err)
	inst, _ := back.Instance("_123_")
	assert.Equal(t, 4, inst.Size)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSplitCellName(t *testing.T) {
	tests := []struct {
		name   string
		family string
		size   int
		ok     bool
	}{
		{"NAND2_X4", "NAND2_X", 4, true},
		{"BUF_X16", "BUF_X", 16, true},
		{"OAI211_X1", "OAI211_X", 1, true},
		{"NAND2", "", 0, false},
		{"X4", "", 0, false},
		{"gcd_ctrl", "", 0, false},
		{"INV_X0", "", 0, false},
		{"\\INV_X1", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, size, _, ok := splitCellName(tt.name, DefaultSuffix)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.family, family)
			assert.Equal(t, tt.size, size)
		})
	}
}
