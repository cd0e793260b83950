package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bawdo/subq/query"
	"github.com/bawdo/subq/resultset"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

var driverName = map[string]string{
	"postgres": "pgx",
	"mysql":    "mysql",
	"sqlite":   "sqlite",
}

const defaultLimit = 1000

type dbConn struct {
	db     *sql.DB
	dsn    string
	engine string
	log    *slog.Logger
}

func connect(engine, dsn string, log *slog.Logger) (*dbConn, error) {
	driver, ok := driverName[engine]
	if !ok {
		return nil, fmt.Errorf("no driver for engine %q", engine)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if engine == "sqlite" {
		// Every pooled connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return newConn(db, engine, dsn, log), nil
}

func newConn(db *sql.DB, engine, dsn string, log *slog.Logger) *dbConn {
	return &dbConn{db: db, dsn: dsn, engine: engine, log: log}
}

func (c *dbConn) close() error {
	return c.db.Close()
}

// run executes stmt capped at limit rows and, alongside it, counts the rows
// of the uncapped statement. A failed count leaves Total at -1.
func (c *dbConn) run(ctx context.Context, stmt string, args []any, limit int) (*resultset.Result, error) {
	var (
		res   *resultset.Result
		total int64 = -1
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := c.fetch(gctx, query.Limit(stmt, limit), args, limit)
		res = r
		return err
	})
	g.Go(func() error {
		n, err := c.count(gctx, stmt, args)
		if err != nil {
			// A failed fetch cancels gctx; its error is the one reported.
			if !errors.Is(err, context.Canceled) && gctx.Err() == nil {
				c.log.Warn("count failed", "error", err)
			}
			return nil
		}
		total = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Total = total
	return res, nil
}

// fetch executes stmt as is and scans at most max rows (0: all).
func (c *dbConn) fetch(ctx context.Context, stmt string, args []any, max int) (*resultset.Result, error) {
	c.log.Debug("executing statement", "engine", c.engine, "sql", stmt, "params", len(args))
	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return resultset.Scan(rows, max)
}

func (c *dbConn) count(ctx context.Context, stmt string, args []any) (int64, error) {
	countSQL := query.Count(stmt)
	c.log.Debug("counting rows", "engine", c.engine, "sql", countSQL)
	var n int64
	if err := c.db.QueryRowContext(ctx, countSQL, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func sanitizeDSN(dsn string) string {
	// Try parsing as URL (postgres style).
	u, err := url.Parse(dsn)
	if err == nil && u.Scheme != "" && u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			// Rebuild manually to avoid percent-encoding the mask.
			masked := u.Scheme + "://" + u.User.Username() + ":****@" + u.Host + u.Path
			if u.RawQuery != "" {
				masked += "?" + u.RawQuery
			}
			return masked
		}
		return dsn
	}

	// Try MySQL-style DSN: user:pass@tcp(host)/db
	if atIdx := strings.LastIndex(dsn, "@"); atIdx > 0 {
		userPass := dsn[:atIdx]
		if colonIdx := strings.Index(userPass, ":"); colonIdx >= 0 {
			return userPass[:colonIdx+1] + "****" + dsn[atIdx:]
		}
	}

	return dsn
}
