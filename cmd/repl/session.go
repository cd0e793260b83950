package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bawdo/subq/cte"
	"github.com/bawdo/subq/export"
	"github.com/bawdo/subq/history"
	"github.com/bawdo/subq/query"
	"github.com/bawdo/subq/resultset"
	"github.com/ergochat/readline"
)

var (
	errNotConnected = errors.New("not connected (use 'connect <dsn>' first)")
	errNoStatement  = errors.New("no statement parsed (use 'parse <sql>' or 'load <file>' first)")
	errNoCTEs       = errors.New("no CTEs found in WITH clause")
	errNoTarget     = errors.New("no CTE selected (use 'run <name>' first)")
)

// target is the CTE statement the session is working with.
type target struct {
	name string
	pos  int // 1-based declaration position
	sql  string
}

func (t target) label() string {
	return fmt.Sprintf("%s (#%d)", t.name, t.pos)
}

// Session holds the REPL state: the parsed statement and its CTEs, the
// connection, the selected CTE with its last result and the active filters.
type Session struct {
	engine   query.Dialect
	commands []commandEntry // command registry (sorted by prefix length desc)
	conn     *dbConn        // nil when disconnected
	lastDSN  string         // remembers the previous DSN for reconnect
	rl       *readline.Instance
	store    *history.Store // nil disables connection history
	log      *slog.Logger
	out      io.Writer // destination for REPL output (default os.Stdout)

	// readLine reads one continuation line for multi-line input.
	readLine func(prompt string) (string, error)

	source string
	stmts  []cte.Statement
	byName map[string]string
	dups   []string

	current *target
	result  *resultset.Result
	filters map[string]string // column -> value
	mode    query.Mode
	limit   int
}

// NewSession creates a session for the given engine.
func NewSession(engine string, rl *readline.Instance) *Session {
	s := &Session{
		rl:      rl,
		out:     os.Stdout,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		filters: make(map[string]string),
		limit:   defaultLimit,
	}
	s.readLine = s.readlineContinuation
	if d, err := query.ParseDialect(engine); err == nil {
		s.engine = d
	} else {
		s.engine = query.MySQL
	}
	s.initCommands()
	return s
}

// Execute parses and runs a single REPL command.
func (s *Session) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)

	for _, cmd := range s.commands {
		if strings.HasSuffix(cmd.prefix, " ") {
			if strings.HasPrefix(lower, cmd.prefix) {
				return cmd.handler(line[len(cmd.prefix):])
			}
		} else {
			if lower == cmd.prefix {
				return cmd.handler("")
			}
		}
	}

	word := strings.Fields(line)[0]
	return fmt.Errorf("unknown command: %s (type 'help' for commands)", word)
}

// --- Statement parsing ---

func (s *Session) cmdParse(args string) error {
	sql := strings.TrimSpace(args)
	if sql == "" {
		var err error
		if sql, err = s.readStatement(); err != nil {
			return err
		}
	}
	return s.parse(sql)
}

func (s *Session) cmdLoad(args string) error {
	path := strings.TrimSpace(args)
	if path == "" {
		return errors.New("usage: load <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return s.parse(string(data))
}

// parse replaces the session's statement. The previous CTE list survives
// a statement that yields no CTEs.
func (s *Session) parse(sql string) error {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return errors.New("empty statement")
	}
	decls := cte.Segment(sql)
	if len(decls) == 0 {
		return errNoCTEs
	}

	s.source = sql
	s.stmts = cte.Expand(decls)
	s.byName = cte.Collapse(s.stmts)
	s.dups = cte.Duplicates(decls)
	s.current = nil
	s.result = nil
	s.clearFilters()

	names := make([]string, len(s.stmts))
	for i, st := range s.stmts {
		names[i] = st.Name
	}
	noun := "CTEs"
	if len(names) == 1 {
		noun = "CTE"
	}
	_, _ = fmt.Fprintf(s.out, "  Parsed %d %s: %s\n", len(names), noun, strings.Join(names, ", "))
	for _, d := range s.dups {
		_, _ = fmt.Fprintf(s.out, "  Warning: %q is declared more than once; 'run %s' uses the last one, use '#n' for the others\n", d, d)
	}
	return nil
}

// readStatement collects continuation lines until one ends with ';'.
func (s *Session) readStatement() (string, error) {
	var lines []string
	for {
		line, err := s.readLine("   ...> ")
		if errors.Is(err, readline.ErrInterrupt) {
			return "", errors.New("parse cancelled")
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			break
		}
	}
	sql := strings.TrimSpace(strings.Join(lines, "\n"))
	if sql == "" {
		return "", errors.New("usage: parse <sql> (or 'parse' then lines ending with ';')")
	}
	return sql, nil
}

func (s *Session) readlineContinuation(p string) (string, error) {
	if s.rl == nil {
		return "", io.EOF
	}
	s.rl.SetPrompt(p)
	defer s.rl.SetPrompt(mainPrompt)
	return s.rl.ReadLine()
}

// --- CTE listing and selection ---

func (s *Session) cmdCTEs() error {
	if len(s.stmts) == 0 {
		return errNoStatement
	}
	for _, st := range s.stmts {
		marker := ""
		if s.byName[st.Name] != st.SQL {
			marker = "  (shadowed)"
		}
		if s.current != nil && s.current.pos == st.Position {
			marker += "  *"
		}
		_, _ = fmt.Fprintf(s.out, "  [%d] %s%s\n", st.Position, st.Name, marker)
	}
	return nil
}

// resolveTarget finds a CTE by name or by "#n"/"n" position. Names resolve
// to the last declaration with that name.
func (s *Session) resolveTarget(arg string) (target, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		if s.current == nil {
			return target{}, errNoTarget
		}
		return *s.current, nil
	}
	if len(s.stmts) == 0 {
		return target{}, errNoStatement
	}

	if n, err := strconv.Atoi(strings.TrimPrefix(arg, "#")); err == nil {
		if n < 1 || n > len(s.stmts) {
			return target{}, fmt.Errorf("no CTE at position %d (1-%d)", n, len(s.stmts))
		}
		st := s.stmts[n-1]
		return target{name: st.Name, pos: st.Position, sql: st.SQL}, nil
	}

	if sql, ok := s.byName[arg]; ok {
		for i := len(s.stmts) - 1; i >= 0; i-- {
			if s.stmts[i].SQL == sql {
				return target{name: arg, pos: s.stmts[i].Position, sql: sql}, nil
			}
		}
	}
	for i := len(s.stmts) - 1; i >= 0; i-- {
		if strings.EqualFold(s.stmts[i].Name, arg) {
			st := s.stmts[i]
			return target{name: st.Name, pos: st.Position, sql: st.SQL}, nil
		}
	}
	return target{}, fmt.Errorf("unknown CTE %q (see 'ctes')", arg)
}

func (s *Session) cmdShow(args string) error {
	t, err := s.resolveTarget(args)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "  -- %s\n", t.label())
	s.printSQL(t.sql)
	return nil
}

func (s *Session) printSQL(sql string) {
	for _, line := range strings.Split(sql, "\n") {
		_, _ = fmt.Fprintf(s.out, "  %s\n", line)
	}
}

// --- Execution ---

func (s *Session) cmdRun(args string) error {
	if s.conn == nil {
		return errNotConnected
	}
	t, err := s.resolveTarget(args)
	if err != nil {
		return err
	}
	if s.current == nil || s.current.pos != t.pos {
		s.clearFilters()
	}
	s.current = &t
	return s.execute()
}

func (s *Session) cmdRerun() error {
	if s.conn == nil {
		return errNotConnected
	}
	if s.current == nil {
		return errNoTarget
	}
	return s.execute()
}

// effectiveSQL is the selected CTE statement with the active filters.
func (s *Session) effectiveSQL() (string, []any, error) {
	if s.current == nil {
		return "", nil, errNoTarget
	}
	if len(s.filters) == 0 {
		return s.current.sql, nil, nil
	}
	conds := make([]query.Condition, 0, len(s.filters))
	for col, val := range s.filters {
		conds = append(conds, query.Condition{Column: col, Value: val})
	}
	return query.Filter(s.engine, s.current.sql, conds, s.mode)
}

func (s *Session) execute() error {
	if s.conn.engine != s.engine.String() {
		_, _ = fmt.Fprintf(s.out, "  Warning: connected to %s but engine is set to %s\n", s.conn.engine, s.engine)
	}
	stmt, params, err := s.effectiveSQL()
	if err != nil {
		return err
	}
	res, err := s.conn.run(context.Background(), stmt, params, s.limit)
	if err != nil {
		return fmt.Errorf("%s: %w", s.current.name, err)
	}
	s.result = res

	if res.Empty() {
		_, _ = fmt.Fprintf(s.out, "  %s returned no rows\n", s.current.label())
		return nil
	}
	resultset.Render(s.out, res)
	return nil
}

func (s *Session) cmdCount() error {
	if s.conn == nil {
		return errNotConnected
	}
	stmt, params, err := s.effectiveSQL()
	if err != nil {
		return err
	}
	n, err := s.conn.count(context.Background(), stmt, params)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "  %s: %d rows\n", s.current.label(), n)
	return nil
}

// cmdSQL shows the statement 'run' would send, including filters.
func (s *Session) cmdSQL() error {
	stmt, params, err := s.effectiveSQL()
	if err != nil {
		return err
	}
	s.printSQL(query.Limit(stmt, s.limit))
	if len(params) > 0 {
		_, _ = fmt.Fprintf(s.out, "  Params: %v\n", params)
	}
	return nil
}

func (s *Session) cmdLimit(args string) error {
	arg := strings.TrimSpace(args)
	if arg == "" {
		_, _ = fmt.Fprintf(s.out, "  Limit: %s\n", limitLabel(s.limit))
		return nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return fmt.Errorf("limit requires a non-negative integer, got %q", arg)
	}
	s.limit = n
	_, _ = fmt.Fprintf(s.out, "  Limit set to %s\n", limitLabel(n))
	return nil
}

func limitLabel(n int) string {
	if n == 0 {
		return "none"
	}
	return strconv.Itoa(n)
}

// --- Filters ---

func (s *Session) cmdFilter(args string) error {
	if s.current == nil {
		return errNoTarget
	}
	col, val, ok := strings.Cut(strings.TrimSpace(args), " ")
	val = strings.TrimSpace(val)
	if !ok || col == "" || val == "" {
		return errors.New("usage: filter <column> <value> | filter off [column]")
	}
	if s.result != nil && len(s.result.Columns) > 0 && s.result.Column(col) < 0 {
		return fmt.Errorf("unknown column %q (columns: %s)", col, strings.Join(s.result.Columns, ", "))
	}
	s.filters[col] = val
	_, _ = fmt.Fprintf(s.out, "  Filter %s %s %q\n", col, modeOp(s.mode), val)
	return s.refresh()
}

func (s *Session) cmdFilterOff(args string) error {
	col := strings.TrimSpace(args)
	if col == "" {
		s.clearFilters()
		_, _ = fmt.Fprintln(s.out, "  Filters cleared")
		return s.refresh()
	}
	if _, ok := s.filters[col]; !ok {
		return fmt.Errorf("no filter on %q", col)
	}
	delete(s.filters, col)
	_, _ = fmt.Fprintf(s.out, "  Filter on %s removed\n", col)
	return s.refresh()
}

func (s *Session) cmdFilters() error {
	if len(s.filters) == 0 {
		_, _ = fmt.Fprintf(s.out, "  No filters (mode: %s)\n", s.mode)
		return nil
	}
	_, _ = fmt.Fprintf(s.out, "  Filters (mode: %s):\n", s.mode)
	for _, col := range s.filterColumns() {
		_, _ = fmt.Fprintf(s.out, "    %s %s %q\n", col, modeOp(s.mode), s.filters[col])
	}
	return nil
}

func (s *Session) cmdMode(args string) error {
	arg := strings.TrimSpace(args)
	if arg == "" {
		_, _ = fmt.Fprintf(s.out, "  Mode: %s\n", s.mode)
		return nil
	}
	m, err := query.ParseMode(arg)
	if err != nil {
		return err
	}
	s.mode = m
	_, _ = fmt.Fprintf(s.out, "  Filter mode set to %s\n", m)
	if len(s.filters) > 0 {
		return s.refresh()
	}
	return nil
}

// refresh re-runs the selected CTE after a filter change, if connected.
func (s *Session) refresh() error {
	if s.conn == nil || s.current == nil {
		return nil
	}
	return s.execute()
}

func (s *Session) clearFilters() {
	s.filters = make(map[string]string)
}

func (s *Session) filterColumns() []string {
	cols := make([]string, 0, len(s.filters))
	for c := range s.filters {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

func modeOp(m query.Mode) string {
	if m == query.Exact {
		return "="
	}
	return "~"
}

// --- Export ---

// cmdExport re-runs the selected CTE with its filters and no row limit and
// writes every row to a file.
func (s *Session) cmdExport(args string) error {
	path := strings.TrimSpace(args)
	if path == "" {
		return fmt.Errorf("usage: export <file> (formats: %s)", strings.Join(export.Formats(), ", "))
	}
	if s.conn == nil {
		return errNotConnected
	}
	stmt, params, err := s.effectiveSQL()
	if err != nil {
		return err
	}
	res, err := s.conn.fetch(context.Background(), stmt, params, 0)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := export.Write(path, res); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	_, _ = fmt.Fprintf(s.out, "  Exported %d rows to %s\n", len(res.Rows), path)
	return nil
}

// --- Engine and connections ---

func (s *Session) cmdEngine(args string) error {
	d, err := query.ParseDialect(args)
	if err != nil {
		return err
	}
	s.engine = d
	_, _ = fmt.Fprintf(s.out, "  Engine set to %s\n", s.engine)
	return nil
}

func (s *Session) cmdEngineShow() error {
	_, _ = fmt.Fprintf(s.out, "  Engine: %s\n", s.engine)
	if s.conn != nil {
		_, _ = fmt.Fprintf(s.out, "  Connected: %s (%s)\n", sanitizeDSN(s.conn.dsn), s.conn.engine)
	}
	return nil
}

func (s *Session) cmdConnect(args string) error {
	dsn := strings.TrimSpace(args)

	if s.conn != nil {
		return fmt.Errorf("already connected to %s (use 'disconnect' first)", sanitizeDSN(s.conn.dsn))
	}

	// Direct DSN provided: connect immediately.
	if dsn != "" {
		return s.connectWithDSN(dsn)
	}

	// Interactive: offer reconnect if we have a previous DSN, otherwise wizard.
	if s.lastDSN != "" {
		choice := prompt(s.rl, fmt.Sprintf("Reconnect to %s? (y/n/setup)", sanitizeDSN(s.lastDSN)), "y")
		switch strings.ToLower(choice) {
		case "y", "yes":
			return s.connectWithDSN(s.lastDSN)
		case "s", "setup":
			return s.connectViaWizard()
		default:
			_, _ = fmt.Fprintln(s.out, "  Connect cancelled")
			return nil
		}
	}

	return s.connectViaWizard()
}

func (s *Session) connectWithDSN(dsn string) error {
	conn, err := connect(s.engine.String(), dsn, s.log)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.conn = conn
	s.lastDSN = dsn
	_, _ = fmt.Fprintf(s.out, "  Connected to %s (%s)\n", sanitizeDSN(dsn), s.engine)
	s.remember(dsn)
	return nil
}

// remember saves a working connection to the history store.
func (s *Session) remember(dsn string) {
	if s.store == nil {
		return
	}
	entry, err := history.FromDSN(s.engine.String(), dsn)
	if err != nil {
		s.log.Debug("connection not saved", "error", err)
		return
	}
	if err := s.store.Save(entry); err != nil && !errors.Is(err, history.ErrIncomplete) {
		_, _ = fmt.Fprintf(s.out, "  Warning: %v\n", err)
	}
}

func (s *Session) connectViaWizard() error {
	entry := buildEntry(s.rl, s.engine.String())
	dsn := entry.DSN()
	if dsn == "" {
		_, _ = fmt.Fprintln(s.out, "  No connection configured")
		return nil
	}

	_, _ = fmt.Fprintf(s.out, "  DSN: %s\n", sanitizeDSN(dsn))
	return s.connectWithDSN(dsn)
}

func (s *Session) cmdDisconnect() error {
	if s.conn == nil {
		return errors.New("not connected")
	}
	dsn := sanitizeDSN(s.conn.dsn)
	if err := s.conn.close(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	s.conn = nil
	_, _ = fmt.Fprintf(s.out, "  Disconnected from %s\n", dsn)
	return nil
}

func (s *Session) historyEntries() ([]history.Entry, error) {
	if s.store == nil {
		return nil, errors.New("connection history is disabled")
	}
	return s.store.Load()
}

func (s *Session) cmdHistory(args string) error {
	entries, err := s.historyEntries()
	if err != nil {
		return err
	}
	arg := strings.TrimSpace(args)
	if arg == "" {
		if len(entries) == 0 {
			_, _ = fmt.Fprintf(s.out, "  No saved connections in %s\n", s.store.Path())
			return nil
		}
		_, _ = fmt.Fprintf(s.out, "  Saved connections (%s):\n", s.store.Path())
		for i, e := range entries {
			_, _ = fmt.Fprintf(s.out, "  [%d] %s\n", i+1, e.Masked())
		}
		return nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil || n < 1 || n > len(entries) {
		return fmt.Errorf("no saved connection %q (see 'history')", arg)
	}
	if s.conn != nil {
		return fmt.Errorf("already connected to %s (use 'disconnect' first)", sanitizeDSN(s.conn.dsn))
	}
	e := entries[n-1]
	if err := s.cmdEngine(e.Engine); err != nil {
		return err
	}
	return s.connectWithDSN(e.DSN())
}

func (s *Session) close() {
	if s.conn != nil {
		_ = s.conn.close()
		s.conn = nil
	}
}
