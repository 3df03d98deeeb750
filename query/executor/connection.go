// Package executor runs compiled queries against a database connection and
// streams their shaped results.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/satishbabariya/relquery/query/shaper"
	"github.com/satishbabariya/relquery/query/sqlgen"
)

// RowReader is an open result set. Rows are read with Next; the cells of
// the current row stay valid until the following call.
type RowReader interface {
	shaper.Cursor
	Close() error
}

// Connection executes commands. A connection is not safe for concurrent
// operations; its Guard detects when one is attempted.
type Connection interface {
	Query(ctx context.Context, cmd *sqlgen.Command, args []any) (RowReader, error)
	Guard() *Guard
}

// Guard marks the critical section of an operation on a connection
type Guard struct {
	busy atomic.Bool
}

// Enter starts an operation, failing when one is already running
func (g *Guard) Enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrConcurrentUse
	}
	return nil
}

// Exit ends the running operation
func (g *Guard) Exit() {
	g.busy.Store(false)
}

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// SQLConnection is a Connection over database/sql
type SQLConnection struct {
	q         Querier
	guard     Guard
	prepare   bool
	stmtCache map[string]*sql.Stmt
	cacheMu   sync.RWMutex
}

// ConnectionOption configures a SQLConnection
type ConnectionOption func(*SQLConnection)

// WithPreparedStatements prepares each command text once and reuses the
// statement
func WithPreparedStatements() ConnectionOption {
	return func(c *SQLConnection) { c.prepare = true }
}

// NewSQLConnection creates a connection over q
func NewSQLConnection(q Querier, opts ...ConnectionOption) *SQLConnection {
	c := &SQLConnection{q: q, stmtCache: make(map[string]*sql.Stmt)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Guard returns the concurrency guard of the connection
func (c *SQLConnection) Guard() *Guard {
	return &c.guard
}

// Query executes cmd. Cancelling ctx aborts the command and any read in
// progress on the returned reader.
func (c *SQLConnection) Query(ctx context.Context, cmd *sqlgen.Command, args []any) (RowReader, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if c.prepare {
		stmt, serr := c.getCachedStmt(ctx, cmd.Text)
		if serr != nil {
			return nil, serr
		}
		rows, err = stmt.QueryContext(ctx, args...)
	} else {
		rows, err = c.q.QueryContext(ctx, cmd.Text, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	return newSQLReader(rows), nil
}

// getCachedStmt gets a cached prepared statement or creates a new one
func (c *SQLConnection) getCachedStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	c.cacheMu.RLock()
	stmt, ok := c.stmtCache[query]
	c.cacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if stmt, ok := c.stmtCache[query]; ok {
		return stmt, nil
	}
	stmt, err := c.q.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	c.stmtCache[query] = stmt
	return stmt, nil
}

// ClearStmtCache closes and forgets every prepared statement
func (c *SQLConnection) ClearStmtCache() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	for _, stmt := range c.stmtCache {
		stmt.Close()
	}
	c.stmtCache = make(map[string]*sql.Stmt)
}

// sqlReader adapts *sql.Rows. Cancellation is observed by database/sql,
// which closes the rows when the query context ends.
type sqlReader struct {
	rows  *sql.Rows
	cells []any
	dest  []any
}

func newSQLReader(rows *sql.Rows) *sqlReader {
	return &sqlReader{rows: rows}
}

func (r *sqlReader) Next(ctx context.Context) (bool, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return false, err
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return false, nil
	}
	if r.dest == nil {
		cols, err := r.rows.Columns()
		if err != nil {
			return false, err
		}
		r.cells = make([]any, len(cols))
		r.dest = make([]any, len(cols))
		for i := range r.cells {
			r.dest[i] = &r.cells[i]
		}
	}
	if err := r.rows.Scan(r.dest...); err != nil {
		return false, fmt.Errorf("failed to scan row: %w", err)
	}
	return true, nil
}

func (r *sqlReader) IsNull(ordinal int) bool {
	return ordinal >= len(r.cells) || r.cells[ordinal] == nil
}

func (r *sqlReader) Value(ordinal int) any {
	if ordinal >= len(r.cells) {
		return nil
	}
	return r.cells[ordinal]
}

func (r *sqlReader) Close() error {
	return r.rows.Close()
}
