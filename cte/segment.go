// Package cte splits the WITH clause of a SQL statement into its named
// sub-queries and rebuilds each one as a standalone statement.
//
// Segmentation does not parse SQL. It tracks parenthesis depth and matches a
// handful of anchors (the WITH keyword, identifiers, "AS ("), so malformed
// input degrades to a shorter result instead of an error.
package cte

import (
	"regexp"
	"strings"
	"unicode"
)

// Declaration is one named sub-query of a WITH clause.
type Declaration struct {
	Name      string
	Columns   string // optional column list, verbatim, without parentheses
	Body      string // text between the outermost parentheses, trimmed
	Recursive bool   // declared under WITH RECURSIVE
}

var withKeyword = regexp.MustCompile(`(?i)\bwith\b`)

type scanState int

const (
	stateSeekKeyword scanState = iota
	stateSeekName
	stateSeekAsParen
	stateScanBody
	stateSeekSeparator
	stateDone
)

// scanner walks the statement with a single cursor. Each step method
// consumes input and returns the next state.
type scanner struct {
	src       string
	pos       int
	state     scanState
	recursive bool
	name      string
	columns   string
	decls     []Declaration
}

// Segment returns the CTE declarations of sql in declaration order. A
// statement without a WITH keyword, or whose WITH is not followed by
// "name AS (", yields an empty result.
func Segment(sql string) []Declaration {
	s := &scanner{src: sql, state: stateSeekKeyword}
	return s.run()
}

func (s *scanner) run() []Declaration {
	for s.state != stateDone {
		switch s.state {
		case stateSeekKeyword:
			s.state = s.seekKeyword()
		case stateSeekName:
			s.state = s.seekName()
		case stateSeekAsParen:
			s.state = s.seekAsParen()
		case stateScanBody:
			s.state = s.scanBody()
		case stateSeekSeparator:
			s.state = s.seekSeparator()
		}
	}
	return s.decls
}

func (s *scanner) seekKeyword() scanState {
	loc := withKeyword.FindStringIndex(s.src)
	if loc == nil {
		return stateDone
	}
	s.pos = loc[1]
	s.recursive = s.consumeRecursive()
	return stateSeekName
}

// consumeRecursive skips a RECURSIVE modifier directly after WITH. The word
// only counts as a modifier when another identifier follows it; a CTE that
// happens to be named "recursive" is left for seekName.
func (s *scanner) consumeRecursive() bool {
	save := s.pos
	s.skipSpace()
	word := s.identifier()
	if !strings.EqualFold(word, "recursive") {
		s.pos = save
		return false
	}
	s.pos += len(word)
	s.skipSpace()
	if s.identifier() == "" || s.atAsParen() {
		s.pos = save
		return false
	}
	return true
}

func (s *scanner) seekName() scanState {
	for s.pos < len(s.src) && (isSpace(s.src[s.pos]) || s.src[s.pos] == ',') {
		s.pos++
	}
	name := s.identifier()
	if name == "" {
		return stateDone
	}
	s.pos += len(name)
	s.name = name
	s.columns = ""
	s.skipSpace()
	if s.pos < len(s.src) && s.src[s.pos] == '(' {
		// name (col, ...) AS (
		start := s.pos + 1
		end := strings.IndexByte(s.src[start:], ')')
		if end < 0 {
			return stateDone
		}
		s.columns = strings.TrimSpace(s.src[start : start+end])
		s.pos = start + end + 1
		s.skipSpace()
	}
	return stateSeekAsParen
}

func (s *scanner) seekAsParen() scanState {
	if !s.atAsParen() {
		return stateDone
	}
	s.pos += strings.IndexByte(s.src[s.pos:], '(') + 1
	return stateScanBody
}

func (s *scanner) scanBody() scanState {
	start := s.pos
	end := len(s.src)
	depth := 1
	for ; s.pos < len(s.src); s.pos++ {
		switch s.src[s.pos] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			end = s.pos
			s.pos++
			break
		}
	}
	s.decls = append(s.decls, Declaration{
		Name:      s.name,
		Columns:   s.columns,
		Body:      strings.TrimSpace(s.src[start:end]),
		Recursive: s.recursive,
	})
	return stateSeekSeparator
}

func (s *scanner) seekSeparator() scanState {
	s.skipSpace()
	if s.pos < len(s.src) && s.src[s.pos] == ',' {
		return stateSeekName
	}
	return stateDone
}

// identifier returns the identifier starting at the cursor without
// consuming it, or "" if there is none.
func (s *scanner) identifier() string {
	i := s.pos
	if i >= len(s.src) || !isIdentStart(s.src[i]) {
		return ""
	}
	for i++; i < len(s.src) && isIdentPart(s.src[i]); i++ {
	}
	return s.src[s.pos:i]
}

// atAsParen reports whether the cursor sits on AS, optional whitespace and
// an opening parenthesis.
func (s *scanner) atAsParen() bool {
	rest := s.src[s.pos:]
	if len(rest) < 2 || !strings.EqualFold(rest[:2], "as") {
		return false
	}
	i := 2
	for i < len(rest) && isSpace(rest[i]) {
		i++
	}
	return i < len(rest) && rest[i] == '('
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func isSpace(b byte) bool {
	return b < 0x80 && unicode.IsSpace(rune(b))
}

func isIdentStart(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || ('0' <= b && b <= '9')
}
