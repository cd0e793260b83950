package main

import (
	"sort"
	"strings"

	"github.com/bawdo/subq/query"
)

// completionContext describes what kind of completion is appropriate.
type completionContext int

const (
	contextCommand completionContext = iota // start of line or partial command
	contextNone                             // free-form argument
	contextCTEName                          // after show/run
	contextColumn                           // after filter/filter off
	contextEngine                           // after engine/set_engine
	contextMode                             // after mode
)

var modeNames = []string{"exact", "fuzzy"}

// replCompleter implements readline's AutoCompleter interface.
type replCompleter struct {
	sess *Session
}

// Do returns completion candidates for the current line/cursor position.
// length is the number of chars from end of line[:pos] that form the prefix being completed.
// newLine contains the suffixes to append for each candidate.
func (c *replCompleter) Do(line []rune, pos int) (newLine [][]rune, length int) {
	lineStr := string(line[:pos])
	ctx, prefix := c.parseContext(lineStr)

	var candidates []string
	switch ctx {
	case contextCommand:
		candidates = filterPrefix(c.sess.commandNames(), prefix)
	case contextCTEName:
		candidates = c.completeCTENames(prefix)
	case contextColumn:
		candidates = c.completeColumns(prefix)
	case contextEngine:
		candidates = filterPrefix(query.Dialects, prefix)
	case contextMode:
		candidates = filterPrefix(modeNames, prefix)
	}

	for _, cand := range candidates {
		suffix := cand[len(prefix):]
		// Add trailing space for convenience.
		newLine = append(newLine, []rune(suffix+" "))
	}
	length = len([]rune(prefix))
	return
}

// parseContext examines the line up to cursor and determines what kind of
// completion is needed and the current prefix being typed.
func (c *replCompleter) parseContext(line string) (completionContext, string) {
	lower := strings.ToLower(line)

	for _, cmd := range c.sess.commands {
		if !strings.HasSuffix(cmd.prefix, " ") {
			continue // exact-match commands have no arg completion
		}
		if strings.HasPrefix(lower, cmd.prefix) {
			if cmd.completer == nil {
				return contextNone, ""
			}
			return cmd.completer(line[len(cmd.prefix):])
		}
	}

	// Default: command completion.
	return contextCommand, strings.TrimLeft(line, " ")
}

// completeCTENames returns the parsed CTE names matching prefix.
func (c *replCompleter) completeCTENames(prefix string) []string {
	names := make([]string, 0, len(c.sess.stmts))
	for _, st := range c.sess.stmts {
		names = append(names, st.Name)
	}
	names = dedup(names)
	sort.Strings(names)
	return filterPrefix(names, prefix)
}

// completeColumns returns the columns of the last result, falling back to
// the columns with an active filter.
func (c *replCompleter) completeColumns(prefix string) []string {
	var names []string
	if c.sess.result != nil {
		names = append(names, c.sess.result.Columns...)
	}
	names = append(names, c.sess.filterColumns()...)
	names = dedup(names)
	return filterPrefix(names, prefix)
}

// filterPrefix returns items that start with prefix (case-insensitive).
func filterPrefix(items []string, prefix string) []string {
	if prefix == "" {
		result := make([]string, len(items))
		copy(result, items)
		return result
	}
	lowerPrefix := strings.ToLower(prefix)
	var result []string
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(item), lowerPrefix) {
			result = append(result, item)
		}
	}
	return result
}

// dedup removes duplicate strings.
func dedup(items []string) []string {
	seen := make(map[string]bool, len(items))
	var result []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
