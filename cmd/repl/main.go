// REPL binary for taking apart WITH statements and running each CTE on its own.
//
// Configuration (flags, env vars, or a .env file in the working directory):
//
//	--engine       SUBQ_ENGINE=postgres|mysql|sqlite  (prompted if absent)
//	--dsn          DATABASE_URL=<dsn>                 (auto-connects if set)
//	--file         statement to parse on start-up
//	--limit        SUBQ_LIMIT=<rows>                  (default 1000, 0 = none)
//	--history-file SUBQ_HISTORY_FILE=<path>           (default ~/.subq_connections)
//
// Usage:
//
//	go run ./cmd/repl
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/bawdo/subq/history"
	"github.com/bawdo/subq/query"
	"github.com/ergochat/readline"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

// CLI holds the command-line configuration.
type CLI struct {
	Engine      string `help:"SQL engine (postgres, mysql, sqlite)." env:"SUBQ_ENGINE" short:"e"`
	DSN         string `help:"Connection string to connect with on start-up." env:"DATABASE_URL" name:"dsn"`
	File        string `help:"File holding a WITH statement to parse on start-up." short:"f" type:"existingfile"`
	Limit       int    `help:"Row limit for 'run' (0 disables it)." env:"SUBQ_LIMIT" default:"1000"`
	HistoryFile string `help:"Connection history file." env:"SUBQ_HISTORY_FILE"`
	NoHistory   bool   `help:"Do not read or write the connection history."`
	Verbose     bool   `help:"Log executed statements to stderr." short:"v"`
}

var (
	errorf = color.New(color.FgRed).FprintfFunc()
	warnf  = color.New(color.FgYellow).FprintfFunc()
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		warnf(os.Stderr, "Warning: .env: %v\n", err)
	}

	var cli CLI
	kong.Parse(&cli,
		kong.Name("subq"),
		kong.Description("Split WITH statements into one query per CTE and run them."),
		kong.UsageOnError(),
	)

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          "[Config] ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		errorf(os.Stderr, "readline init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	engine := loadEngine(rl, cli.Engine)
	sess := NewSession(engine, rl)
	sess.log = logger
	if cli.Limit >= 0 {
		sess.limit = cli.Limit
	}
	if !cli.NoHistory {
		path := cli.HistoryFile
		if path == "" {
			path = history.DefaultPath()
		}
		if path != "" {
			sess.store = history.NewStore(path)
		}
	}

	// Set up the completer now that we have a session.
	comp := &replCompleter{sess: sess}
	_ = rl.SetConfig(&readline.Config{
		Prompt:          mainPrompt,
		HistoryFile:     historyPath(),
		HistoryLimit:    500,
		AutoComplete:    comp,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})

	if cli.DSN != "" {
		fmt.Printf("[Config] Connecting via --dsn/DATABASE_URL...\n")
		if err := sess.connectWithDSN(cli.DSN); err != nil {
			warnf(os.Stderr, "  Warning: connect failed: %v\n", err)
		}
	} else {
		loadConnection(rl, sess)
	}

	if cli.File != "" {
		if err := sess.cmdLoad(cli.File); err != nil {
			errorf(os.Stderr, "  Error: %v\n", err)
		}
	}

	fmt.Println()
	fmt.Println("subq REPL, type 'help' for commands, 'exit' to quit")
	fmt.Println()

	rl.SetPrompt(mainPrompt)
	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if lower == "exit" || lower == "quit" {
			break
		}
		if err := sess.Execute(line); err != nil {
			errorf(os.Stderr, "  Error: %v\n", err)
		}
	}
	sess.close()
	fmt.Println()
}

func loadEngine(rl *readline.Instance, configured string) string {
	if engine := strings.TrimSpace(configured); engine != "" {
		d, err := query.ParseDialect(engine)
		if err != nil {
			warnf(os.Stderr, "Warning: invalid SUBQ_ENGINE=%q, defaulting to mysql\n", engine)
			return query.MySQL.String()
		}
		fmt.Printf("[Config] Engine: %s\n", d)
		return d.String()
	}

	choice := prompt(rl, "Select engine ("+strings.Join(query.Dialects, ", ")+")", "mysql")
	d, err := query.ParseDialect(choice)
	if err != nil {
		warnf(os.Stderr, "Warning: unknown engine %q, defaulting to mysql\n", choice)
		return query.MySQL.String()
	}
	fmt.Printf("[Config] Engine: %s\n", d)
	return d.String()
}

// loadConnection offers the saved connections for the engine, then the
// connection wizard.
func loadConnection(rl *readline.Instance, sess *Session) {
	answer := prompt(rl, "Connect to a database? (y/N)", "")
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		fmt.Println("[Config] Skipped, use 'connect <dsn>' later to connect")
		return
	}

	if entry, ok := pickSaved(rl, sess); ok {
		if err := sess.connectWithDSN(entry.DSN()); err != nil {
			warnf(os.Stderr, "  Warning: connect failed: %v\n", err)
		}
		return
	}

	if err := sess.connectViaWizard(); err != nil {
		warnf(os.Stderr, "  Warning: connect failed: %v\n", err)
		fmt.Println("[Config] Use 'connect <dsn>' later to retry")
	}
}

// pickSaved lists the saved connections of the session's engine and lets
// the user choose one by number.
func pickSaved(rl *readline.Instance, sess *Session) (history.Entry, bool) {
	all, err := sess.historyEntries()
	if err != nil {
		return history.Entry{}, false
	}
	var saved []history.Entry
	for _, e := range all {
		if e.Engine == sess.engine.String() {
			saved = append(saved, e)
		}
	}
	if len(saved) == 0 {
		return history.Entry{}, false
	}

	fmt.Println("[Config] Saved connections:")
	for i, e := range saved {
		fmt.Printf("[Config]   [%d] %s\n", i+1, e.Masked())
	}
	choice := prompt(rl, "Pick a number, or press enter for a new connection", "")
	var n int
	if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 1 || n > len(saved) {
		return history.Entry{}, false
	}
	return saved[n-1], true
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".subq_history")
}
