package netlist

import "strings"

type tokenKind int

const (
	tokWord  tokenKind = iota // identifier, escaped identifier, number or string literal
	tokPunct                  // single punctuation byte
)

// token is a lexical unit with its byte offset and 1-based line in the source.
type token struct {
	kind tokenKind
	text string
	off  int
	line int
}

func (t token) is(punct string) bool {
	return t.kind == tokPunct && t.text == punct
}

func (t token) end() int {
	return t.off + len(t.text)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '$' || c == '\''
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// tokenize splits src into tokens. Comments and whitespace are dropped;
// offsets keep every token addressable in the original text.
func tokenize(src string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case isSpace(c):
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &ParseError{Line: line, Statement: clip(src[i:]), Reason: "unterminated block comment"}
			}
			n := 2 + end + 2
			line += strings.Count(src[i:i+n], "\n")
			i += n
		case c == '"':
			j := i + 1
			for j < len(src) && src[j] != '"' && src[j] != '\n' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) || src[j] != '"' {
				return nil, &ParseError{Line: line, Statement: clip(src[i:]), Reason: "unterminated string literal"}
			}
			toks = append(toks, token{kind: tokWord, text: src[i : j+1], off: i, line: line})
			i = j + 1
		case c == '\\':
			j := i + 1
			for j < len(src) && !isSpace(src[j]) {
				j++
			}
			if j == i+1 || j >= len(src) {
				return nil, &ParseError{Line: line, Statement: clip(src[i:]), Reason: "unterminated escaped identifier"}
			}
			toks = append(toks, token{kind: tokWord, text: src[i:j], off: i, line: line})
			i = j
		case isWordByte(c):
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: src[i:j], off: i, line: line})
			i = j
		default:
			toks = append(toks, token{kind: tokPunct, text: src[i : i+1], off: i, line: line})
			i++
		}
	}
	return toks, nil
}

// splitStatements groups tokens into statements terminated by ';'.
// endmodule stands alone, and compiler directives run to the end of their line.
func splitStatements(toks []token) [][]token {
	var out [][]token
	start := 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.is(";"):
			out = append(out, toks[start:i+1])
			start = i + 1
		case t.kind == tokWord && t.text == "endmodule":
			if start < i {
				out = append(out, toks[start:i])
			}
			out = append(out, toks[i:i+1])
			start = i + 1
		case t.is("`") && start == i:
			j := i + 1
			for j < len(toks) && toks[j].line == t.line {
				j++
			}
			out = append(out, toks[i:j])
			start = j
			i = j - 1
		}
	}
	if start < len(toks) {
		out = append(out, toks[start:])
	}
	return out
}

// stripAttributes drops leading (* ... *) attribute groups.
func stripAttributes(stmt []token) []token {
	for len(stmt) >= 2 && stmt[0].is("(") && stmt[1].is("*") {
		j := 2
		for j+1 < len(stmt) && !(stmt[j].is("*") && stmt[j+1].is(")")) {
			j++
		}
		if j+1 >= len(stmt) {
			return stmt
		}
		stmt = stmt[j+2:]
	}
	return stmt
}

func clip(s string) string {
	const max = 80
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
