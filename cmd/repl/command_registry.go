package main

import (
	"errors"
	"sort"
	"strings"
)

// commandEntry maps a REPL prefix to its handler and optional tab-completer.
type commandEntry struct {
	prefix    string
	handler   func(args string) error
	completer func(args string) (completionContext, string) // nil = no arg completion
	hidden    bool                                          // excluded from commandNames()
}

// initCommands builds the command registry and sorts by prefix length descending.
func (s *Session) initCommands() {
	s.commands = []commandEntry{
		// --- no-arg / display commands ---
		{prefix: "help", handler: func(_ string) error { s.cmdHelp(); return nil }},
		{prefix: "ctes", handler: func(_ string) error { return s.cmdCTEs() }},
		{prefix: "sql", handler: func(_ string) error { return s.cmdSQL() }},
		{prefix: "filters", handler: func(_ string) error { return s.cmdFilters() }},

		// --- statement input ---
		{prefix: "parse ", handler: func(a string) error { return s.cmdParse(a) }},
		{prefix: "parse", handler: func(_ string) error { return s.cmdParse("") }},
		{prefix: "load ", handler: func(a string) error { return s.cmdLoad(a) }},
		{prefix: "load", handler: func(_ string) error { return errors.New("usage: load <file>") }},

		// --- CTE selection and execution ---
		{prefix: "show ", handler: func(a string) error { return s.cmdShow(a) }, completer: completeCTEArgs},
		{prefix: "show", handler: func(_ string) error { return s.cmdShow("") }},
		{prefix: "run ", handler: func(a string) error { return s.cmdRun(a) }, completer: completeCTEArgs},
		{prefix: "run", handler: func(_ string) error { return s.cmdRerun() }},
		{prefix: "rerun", handler: func(_ string) error { return s.cmdRerun() }},
		{prefix: "count", handler: func(_ string) error { return s.cmdCount() }},
		{prefix: "limit ", handler: func(a string) error { return s.cmdLimit(a) }},
		{prefix: "limit", handler: func(_ string) error { return s.cmdLimit("") }},

		// --- filters ---
		{prefix: "filter off ", handler: func(a string) error { return s.cmdFilterOff(a) }, completer: completeColumnArgs},
		{prefix: "filter off", handler: func(_ string) error { return s.cmdFilterOff("") }},
		{prefix: "filter ", handler: func(a string) error { return s.cmdFilter(a) }, completer: completeColumnArgs},
		{prefix: "filter", handler: func(_ string) error { return s.cmdFilter("") }},
		{prefix: "mode ", handler: func(a string) error { return s.cmdMode(a) }, completer: completeModeArgs},
		{prefix: "mode", handler: func(_ string) error { return s.cmdMode("") }},

		// --- export ---
		{prefix: "export ", handler: func(a string) error { return s.cmdExport(a) }},
		{prefix: "export", handler: func(_ string) error { return s.cmdExport("") }},

		// --- database connectivity ---
		{prefix: "connect ", handler: func(a string) error { return s.cmdConnect(a) }},
		{prefix: "connect", handler: func(_ string) error { return s.cmdConnect("") }},
		{prefix: "disconnect", handler: func(_ string) error { return s.cmdDisconnect() }},
		{prefix: "history ", handler: func(a string) error { return s.cmdHistory(a) }},
		{prefix: "history", handler: func(_ string) error { return s.cmdHistory("") }},

		// --- engine ---
		{prefix: "set_engine ", handler: func(a string) error { return s.cmdEngine(a) }, completer: completeEngineArgs, hidden: true},
		{prefix: "engine ", handler: func(a string) error { return s.cmdEngine(a) }, completer: completeEngineArgs},
		{prefix: "engine", handler: func(_ string) error { return s.cmdEngineShow() }},
	}

	// Sort by prefix length descending so longest prefixes match first.
	sort.SliceStable(s.commands, func(i, j int) bool {
		return len(s.commands[i].prefix) > len(s.commands[j].prefix)
	})
}

// commandNames derives the command name list from the registry for tab completion.
func (s *Session) commandNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, cmd := range s.commands {
		if cmd.hidden {
			continue
		}
		name := strings.TrimRight(cmd.prefix, " ")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	// exit/quit are handled by the REPL loop, not Execute().
	for _, extra := range []string{"exit", "quit"} {
		if !seen[extra] {
			names = append(names, extra)
		}
	}
	sort.Strings(names)
	return names
}

// --- Shared completion helpers ---

// completeCTEArgs completes CTE names for show and run.
func completeCTEArgs(args string) (completionContext, string) {
	return contextCTEName, strings.TrimSpace(args)
}

// completeColumnArgs completes the column of a filter; the value is free-form.
func completeColumnArgs(args string) (completionContext, string) {
	arg := strings.TrimLeft(args, " ")
	if strings.Contains(arg, " ") {
		return contextNone, ""
	}
	return contextColumn, arg
}

// completeEngineArgs handles completion for engine/set_engine commands.
func completeEngineArgs(args string) (completionContext, string) {
	return contextEngine, strings.TrimSpace(args)
}

func completeModeArgs(args string) (completionContext, string) {
	return contextMode, strings.TrimSpace(args)
}
