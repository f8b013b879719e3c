package netlist

import "fmt"

// ParseError reports netlist text that could not be tokenized unambiguously.
// Ambiguous instance declarations are collected in Netlist.Skipped and left untouched;
// only unreadable input is returned from Parse.
type ParseError struct {
	Line      int
	Statement string
	Reason    string
}

func (e *ParseError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("netlist line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("netlist line %d: %s: %q", e.Line, e.Reason, e.Statement)
}

// InvalidSizeError reports a resize outside the rule table's legal target set.
// Correct perturbation logic never produces one.
type InvalidSizeError struct {
	Instance string
	Family   string
	From     int
	To       int
	Reason   string
}

func (e *InvalidSizeError) Error() string {
	if e.Family == "" {
		return fmt.Sprintf("invalid resize of %q to %d: %s", e.Instance, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid resize of %q (%s%d -> %s%d): %s",
		e.Instance, e.Family, e.From, e.Family, e.To, e.Reason)
}
