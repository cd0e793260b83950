package main

import (
	"fmt"
	"os/user"
	"strings"

	"github.com/bawdo/subq/history"
	"github.com/ergochat/readline"
)

const mainPrompt = "subq> "

// prompt prints a label with an optional default and returns the user's input
// (or the default if they press enter).
func prompt(rl *readline.Instance, label, defaultVal string) string {
	if rl == nil {
		return defaultVal
	}
	if defaultVal != "" {
		rl.SetPrompt(fmt.Sprintf("[Config]   %s [%s]: ", label, defaultVal))
	} else {
		rl.SetPrompt(fmt.Sprintf("[Config]   %s: ", label))
	}
	defer rl.SetPrompt(mainPrompt)
	line, err := rl.ReadLine()
	if err != nil {
		return defaultVal
	}
	val := strings.TrimSpace(line)
	if val == "" {
		return defaultVal
	}
	return val
}

// buildEntry asks for the connection settings of engine. An entry without a
// database yields an empty DSN.
func buildEntry(rl *readline.Instance, engine string) history.Entry {
	e := history.Entry{Engine: engine}
	switch engine {
	case "sqlite":
		fmt.Println("[Config] SQLite connection setup:")
		e.Database = prompt(rl, "Database path", ":memory:")
	case "mysql":
		fmt.Println("[Config] MySQL connection setup:")
		e.User = prompt(rl, "User", "root")
		e.Password = prompt(rl, "Password", "")
		e.Host = prompt(rl, "Host", "localhost")
		e.Port = prompt(rl, "Port", "3306")
		e.Database = prompt(rl, "Database", "")
	default:
		fmt.Println("[Config] PostgreSQL connection setup:")
		defaultUser := "postgres"
		if u, err := user.Current(); err == nil && u.Username != "" {
			defaultUser = u.Username
		}
		e.User = prompt(rl, "User", defaultUser)
		e.Password = prompt(rl, "Password", "")
		e.Host = prompt(rl, "Host", "localhost")
		e.Port = prompt(rl, "Port", "5432")
		e.Database = prompt(rl, "Database", e.User)
	}
	if e.Database == "" {
		return history.Entry{Engine: engine}
	}
	return e
}

func (s *Session) cmdHelp() {
	_, _ = fmt.Fprint(s.out, `Statement:
  parse <sql>              Split a WITH statement into one query per CTE
  parse                    Read a multi-line statement ending with ';'
  load <file>              Parse the statement stored in a file
  ctes                     List the parsed CTEs (* marks the selected one)
  show [name|#n]           Print the reconstructed query for a CTE

Execution:
  run <name|#n>            Run a CTE (capped at the row limit, with a total count)
  run, rerun               Run the selected CTE again
  count                    Count the rows of the selected CTE
  sql                      Print the statement 'run' would send
  limit [n]                Show or set the row limit (0 = no limit)

Filters:
  filter <column> <value>  Restrict a result column to a value
  filter off [column]      Remove one filter, or all of them
  filters                  List the active filters
  mode [fuzzy|exact]       Match filter values as substrings or exactly

Export:
  export <file>            Write every row of the selected CTE (.xlsx .csv .tsv .md .html)

Connection:
  engine [postgres|mysql|sqlite]
                           Show or set the SQL engine
  connect [dsn]            Connect (prompts when no DSN is given)
  disconnect               Close the connection
  history [n]              List saved connections, or connect to the n-th

  help                     Show this help
  exit, quit               Leave the REPL
`)
}
