// Package netlist holds the structural model of a gate-level netlist together
// with the static sizing and area tables that constrain it.
//
// The model keeps the source text verbatim. Gate instances are located by a
// tokenizer; resizing changes only the size digits of the instance's cell
// name, so serialization reproduces every other byte of the input.
package netlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// verilogKeywords never start a cell instantiation.
var verilogKeywords = map[string]bool{
	"module": true, "endmodule": true, "macromodule": true, "primitive": true, "endprimitive": true,
	"input": true, "output": true, "inout": true,
	"wire": true, "wand": true, "wor": true, "reg": true, "tri": true, "tri0": true, "tri1": true,
	"supply0": true, "supply1": true, "integer": true, "real": true, "time": true, "genvar": true,
	"assign": true, "parameter": true, "localparam": true, "defparam": true,
	"specify": true, "endspecify": true, "function": true, "endfunction": true, "task": true, "endtask": true,
	"initial": true, "always": true, "generate": true, "endgenerate": true,
}

// Port is one connection of an instance. Pin is empty for positional connections.
type Port struct {
	Pin string
	Net string
}

// Instance is one placed cell. Ports are shared between clones and must not be modified.
type Instance struct {
	Family string // cell family including the size suffix, e.g. "NAND2_X"
	Size   int
	Name   string
	Ports  []Port
	Line   int // source line of the cell name

	sizeOff  int
	sizeLen  int
	origSize int
}

// Cell returns the full cell name, e.g. "NAND2_X4".
func (i Instance) Cell() string {
	return i.Family + strconv.Itoa(i.Size)
}

// Netlist is an in-memory netlist: the original text plus the gate instances found in it.
type Netlist struct {
	src       string
	suffix    string
	instances []Instance
	index     map[string]int // name -> position in instances; immutable after Parse

	// Skipped lists ambiguous declarations that were left untouched and are never resized.
	Skipped []*ParseError
}

// Parse builds a Netlist from Verilog text. Cell names are split into family and
// size at the trailing digits; the family must end with suffix.
func Parse(src, suffix string) (*Netlist, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	n := &Netlist{
		src:    src,
		suffix: suffix,
		index:  make(map[string]int),
	}
	for _, stmt := range splitStatements(toks) {
		inst, perr := n.parseInstance(stmt)
		if perr != nil {
			n.Skipped = append(n.Skipped, perr)
			continue
		}
		if inst == nil {
			continue
		}
		if _, dup := n.index[inst.Name]; dup {
			n.Skipped = append(n.Skipped, &ParseError{
				Line:      inst.Line,
				Statement: clip(n.src[stmt[0].off:]),
				Reason:    fmt.Sprintf("duplicate instance name %q", inst.Name),
			})
			continue
		}
		n.index[inst.Name] = len(n.instances)
		n.instances = append(n.instances, *inst)
	}
	return n, nil
}

// ReadFile parses the netlist stored at path.
func ReadFile(path, suffix string) (*Netlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading netlist: %w", err)
	}
	n, err := Parse(string(data), suffix)
	if err != nil {
		return nil, fmt.Errorf("parsing netlist %s: %w", path, err)
	}
	return n, nil
}

// parseInstance returns (nil, nil) for statements that are not sized-cell instantiations,
// and a ParseError for cell-shaped statements that cannot be tokenized unambiguously.
func (n *Netlist) parseInstance(stmt []token) (*Instance, *ParseError) {
	stmt = stripAttributes(stmt)
	if len(stmt) == 0 {
		return nil, nil
	}
	head := stmt[0]
	if head.kind != tokWord || verilogKeywords[head.text] {
		return nil, nil
	}
	family, size, digitsOff, ok := splitCellName(head.text, n.suffix)
	if !ok {
		return nil, nil
	}
	ambiguous := func(reason string) *ParseError {
		return &ParseError{Line: head.line, Statement: clip(n.src[head.off:]), Reason: reason}
	}
	if len(stmt) < 2 || stmt[1].is(";") {
		return nil, ambiguous("missing instance name")
	}
	if stmt[1].is("#") {
		return nil, ambiguous("parameter override on sized cell")
	}
	if stmt[1].kind != tokWord || verilogKeywords[stmt[1].text] {
		return nil, ambiguous("missing instance name")
	}
	if len(stmt) < 3 || !stmt[2].is("(") {
		if len(stmt) >= 3 && stmt[2].is("[") {
			return nil, ambiguous("instance arrays are not supported")
		}
		return nil, ambiguous("missing port list")
	}
	ports, next, reason := parsePorts(n.src, stmt, 2)
	if reason != "" {
		return nil, ambiguous(reason)
	}
	rest := stmt[next:]
	switch {
	case len(rest) == 0:
		return nil, ambiguous("missing ';' after port list")
	case rest[0].is(","):
		return nil, ambiguous("multiple instances in one statement")
	case !rest[0].is(";") || len(rest) > 1:
		return nil, ambiguous("unexpected tokens after port list")
	}
	return &Instance{
		Family:   family,
		Size:     size,
		Name:     stmt[1].text,
		Ports:    ports,
		Line:     head.line,
		sizeOff:  head.off + digitsOff,
		sizeLen:  len(head.text) - digitsOff,
		origSize: size,
	}, nil
}

// splitCellName splits "NAND2_X4" into ("NAND2_X", 4). digitsOff is the offset
// of the size digits inside name.
func splitCellName(name, suffix string) (family string, size, digitsOff int, ok bool) {
	if strings.HasPrefix(name, "\\") {
		return "", 0, 0, false
	}
	j := len(name)
	for j > 0 && isDigit(name[j-1]) {
		j--
	}
	if j == len(name) || j <= len(suffix) {
		return "", 0, 0, false
	}
	family = name[:j]
	if !strings.HasSuffix(family, suffix) {
		return "", 0, 0, false
	}
	size, err := strconv.Atoi(name[j:])
	if err != nil || size <= 0 {
		return "", 0, 0, false
	}
	return family, size, j, true
}

// parsePorts parses the parenthesized connection list starting at stmt[open].
// It returns the ports and the index just past the closing parenthesis, or a reason.
func parsePorts(src string, stmt []token, open int) ([]Port, int, string) {
	var ports []Port
	depth := 0
	connStart := open + 1
	for i := open; i < len(stmt); i++ {
		t := stmt[i]
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "{", "[":
			depth++
		case ")", "}", "]":
			depth--
			if depth < 0 {
				return nil, 0, "unbalanced parentheses"
			}
			if depth > 0 {
				continue
			}
			if t.text != ")" {
				return nil, 0, "unbalanced parentheses"
			}
			if i > connStart {
				p, reason := parseConnection(src, stmt[connStart:i])
				if reason != "" {
					return nil, 0, reason
				}
				ports = append(ports, p)
			} else if len(ports) > 0 {
				return nil, 0, "empty connection"
			}
			return ports, i + 1, ""
		case ",":
			if depth != 1 {
				continue
			}
			if i == connStart {
				return nil, 0, "empty connection"
			}
			p, reason := parseConnection(src, stmt[connStart:i])
			if reason != "" {
				return nil, 0, reason
			}
			ports = append(ports, p)
			connStart = i + 1
		case ";":
			return nil, 0, "unbalanced parentheses"
		}
	}
	return nil, 0, "unbalanced parentheses"
}

func parseConnection(src string, toks []token) (Port, string) {
	if !toks[0].is(".") {
		return Port{Net: rawText(src, toks)}, ""
	}
	if len(toks) < 4 || toks[1].kind != tokWord || !toks[2].is("(") || !toks[len(toks)-1].is(")") {
		return Port{}, "malformed named connection"
	}
	depth := 0
	for i := 2; i < len(toks)-1; i++ {
		if toks[i].is("(") {
			depth++
		} else if toks[i].is(")") {
			depth--
		}
		if depth == 0 {
			return Port{}, "malformed named connection"
		}
	}
	p := Port{Pin: toks[1].text}
	if inner := toks[3 : len(toks)-1]; len(inner) > 0 {
		p.Net = rawText(src, inner)
	}
	return p, ""
}

func rawText(src string, toks []token) string {
	return strings.TrimSpace(src[toks[0].off:toks[len(toks)-1].end()])
}

// Serialize returns the netlist text with the size digits of resized instances replaced.
func (n *Netlist) Serialize() string {
	var b strings.Builder
	b.Grow(len(n.src) + 16)
	last := 0
	for i := range n.instances {
		inst := &n.instances[i]
		if inst.Size == inst.origSize {
			continue
		}
		b.WriteString(n.src[last:inst.sizeOff])
		b.WriteString(strconv.Itoa(inst.Size))
		last = inst.sizeOff + inst.sizeLen
	}
	b.WriteString(n.src[last:])
	return b.String()
}

// WriteFile writes the serialized netlist to path atomically.
func (n *Netlist) WriteFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".netlist-*")
	if err != nil {
		return fmt.Errorf("creating temp netlist: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(n.Serialize()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing netlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing netlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming netlist into place: %w", err)
	}
	return nil
}

// Resize sets the size of the named instance. newSize must be a legal target for
// the instance's family and current size.
func (n *Netlist) Resize(name string, newSize int, rules *RuleTable) error {
	i, ok := n.index[name]
	if !ok {
		return &InvalidSizeError{Instance: name, To: newSize, Reason: "unknown instance"}
	}
	inst := &n.instances[i]
	if !rules.Legal(inst.Family, inst.Size, newSize) {
		return &InvalidSizeError{
			Instance: name,
			Family:   inst.Family,
			From:     inst.Size,
			To:       newSize,
			Reason:   fmt.Sprintf("legal targets are %v", rules.Targets(inst.Family, inst.Size)),
		}
	}
	inst.Size = newSize
	return nil
}

// Clone returns an independent copy. Source text, index and ports are immutable and shared.
func (n *Netlist) Clone() *Netlist {
	c := *n
	c.instances = make([]Instance, len(n.instances))
	copy(c.instances, n.instances)
	return &c
}

// Len returns the number of gate instances.
func (n *Netlist) Len() int {
	return len(n.instances)
}

// Suffix returns the size suffix the netlist was parsed with.
func (n *Netlist) Suffix() string {
	return n.suffix
}

// Instances returns a copy of the gate instances in source order.
func (n *Netlist) Instances() []Instance {
	out := make([]Instance, len(n.instances))
	copy(out, n.instances)
	return out
}

// Instance looks up an instance by name.
func (n *Netlist) Instance(name string) (Instance, bool) {
	i, ok := n.index[name]
	if !ok {
		return Instance{}, false
	}
	return n.instances[i], true
}

// Change describes one instance whose size differs between two netlists.
type Change struct {
	Name   string
	Family string
	From   int
	To     int
}

// ChangedFrom lists instances whose size differs from the same-named instance in base.
func (n *Netlist) ChangedFrom(base *Netlist) []Change {
	var changes []Change
	for _, inst := range n.instances {
		prev, ok := base.Instance(inst.Name)
		if !ok || prev.Size == inst.Size {
			continue
		}
		changes = append(changes, Change{Name: inst.Name, Family: inst.Family, From: prev.Size, To: inst.Size})
	}
	return changes
}
