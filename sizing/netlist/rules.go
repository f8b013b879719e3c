package netlist

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSuffix is the drive-strength separator used by NanGate-style cell names (INV_X4).
const DefaultSuffix = "X"

// RuleTable maps a cell family and its current drive size to the legal alternate sizes.
// A family/size pair with no entry, or an empty target list, is not sizable.
// Treat as immutable once loaded; accessors return copies.
type RuleTable struct {
	Suffix   string                   `yaml:"suffix"`
	Families map[string]map[int][]int `yaml:"families"`
}

// Targets returns the legal target sizes for family at size, or nil.
func (r *RuleTable) Targets(family string, size int) []int {
	if r == nil {
		return nil
	}
	sizes, ok := r.Families[family]
	if !ok {
		return nil
	}
	targets := sizes[size]
	if len(targets) == 0 {
		return nil
	}
	out := make([]int, len(targets))
	copy(out, targets)
	return out
}

// Sizable reports whether family at size has at least one legal target.
func (r *RuleTable) Sizable(family string, size int) bool {
	if r == nil {
		return false
	}
	return len(r.Families[family][size]) > 0
}

// Legal reports whether newSize is a legal target for family at size.
func (r *RuleTable) Legal(family string, size, newSize int) bool {
	if r == nil {
		return false
	}
	for _, t := range r.Families[family][size] {
		if t == newSize {
			return true
		}
	}
	return false
}

// FamilyNames returns the sorted family identifiers.
func (r *RuleTable) FamilyNames() []string {
	names := make([]string, 0, len(r.Families))
	for name := range r.Families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the table for structural errors.
func (r *RuleTable) Validate() error {
	if r.Suffix == "" {
		return fmt.Errorf("rule table suffix must not be empty")
	}
	if len(r.Families) == 0 {
		return fmt.Errorf("rule table has no families")
	}
	for _, family := range r.FamilyNames() {
		if !strings.HasSuffix(family, r.Suffix) {
			return fmt.Errorf("family %q does not end with suffix %q", family, r.Suffix)
		}
		for size, targets := range r.Families[family] {
			if size <= 0 {
				return fmt.Errorf("family %q: size must be positive, got %d", family, size)
			}
			seen := make(map[int]bool, len(targets))
			for _, t := range targets {
				if t <= 0 {
					return fmt.Errorf("family %q size %d: target must be positive, got %d", family, size, t)
				}
				if t == size {
					return fmt.Errorf("family %q size %d: target equals current size", family, size)
				}
				if seen[t] {
					return fmt.Errorf("family %q size %d: duplicate target %d", family, size, t)
				}
				seen[t] = true
			}
		}
	}
	return nil
}

// LoadRuleTable reads and validates a YAML rule table.
// Uses strict parsing: unrecognized keys are rejected.
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	var table RuleTable
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("parsing rule table: %w", err)
	}
	if table.Suffix == "" {
		table.Suffix = DefaultSuffix
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule table %s: %w", path, err)
	}
	return &table, nil
}

// DefaultRuleTable returns the built-in NanGate-style sizing table.
func DefaultRuleTable() *RuleTable {
	small := func() map[int][]int { return map[int][]int{1: {2}, 2: {1, 4}, 4: {1, 2}} }
	pair := func() map[int][]int { return map[int][]int{1: {2}, 2: {1}} }
	wide := func() map[int][]int {
		return map[int][]int{1: {2}, 2: {1, 4}, 4: {1, 2, 8}, 8: {2, 4, 16}, 16: {4, 8, 32}, 32: {8, 16}}
	}

	families := map[string]map[int][]int{
		"BUF_X":    wide(),
		"INV_X":    wide(),
		"CLKBUF_X": {1: {2}, 2: {1, 3}, 3: {1, 2}},
		"TBUF_X":   {1: {2}, 2: {1, 4}, 4: {1, 2, 8}, 8: {2, 4, 16}, 16: {4, 8}},
		"OAI33_X":  {1: {}},
		"TINV_X":   {1: {}},
	}
	for _, f := range []string{
		"AND2_X", "AND3_X", "AND4_X",
		"AOI21_X", "AOI22_X", "AOI211_X", "AOI221_X", "AOI222_X",
		"NAND2_X", "NAND3_X", "NAND4_X",
		"NOR2_X", "NOR3_X", "NOR4_X",
		"OAI21_X", "OAI22_X", "OAI211_X", "OAI221_X", "OAI222_X",
		"OR2_X", "OR3_X", "OR4_X",
	} {
		families[f] = small()
	}
	for _, f := range []string{
		"DFF_X", "DFFR_X", "DFFS_X", "DFFRS_X",
		"SDFF_X", "SDFFR_X", "SDFFS_X", "SDFFRS_X",
		"DLH_X", "DLL_X", "MUX2_X", "XNOR2_X", "XOR2_X",
	} {
		families[f] = pair()
	}
	return &RuleTable{Suffix: DefaultSuffix, Families: families}
}

// AreaTable holds static per family/size area units for the optional area cost term.
type AreaTable struct {
	Units map[string]map[int]float64 `yaml:"units"`
}

// Area returns the area for family at size.
func (a *AreaTable) Area(family string, size int) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v, ok := a.Units[family][size]
	return v, ok
}

// LoadAreaTable reads a YAML area table with strict field checking.
func LoadAreaTable(path string) (*AreaTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading area table: %w", err)
	}
	var table AreaTable
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("parsing area table: %w", err)
	}
	for family, sizes := range table.Units {
		for size, v := range sizes {
			if v < 0 {
				return nil, fmt.Errorf("area for %s%d must be non-negative, got %f", family, size, v)
			}
		}
	}
	return &table, nil
}
