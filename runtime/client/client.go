// Package client provides the runtime client: a database plus the compiler
// and executor running object queries against it.
package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/cache"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/executor"
)

// Client is the main database client
type Client struct {
	db       *sql.DB
	provider string
	compiler *compiler.Compiler
	conn     *executor.SQLConnection
	exec     *executor.Executor
	opts     options
}

// New opens a database for provider and creates a client for model
func New(provider, dsn string, model *metadata.Model, opts ...Option) (*Client, error) {
	db, err := executor.Open(provider, dsn)
	if err != nil {
		return nil, err
	}
	c, err := NewFromDB(provider, db, model, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewFromDB creates a client from a database connection
func NewFromDB(provider string, db *sql.DB, model *metadata.Model, opts ...Option) (*Client, error) {
	if executor.DriverName(provider) == "" {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.compiler.Provider = provider
	comp, err := compiler.NewCompiler(model, o.compiler)
	if err != nil {
		return nil, err
	}
	c := &Client{db: db, provider: provider, compiler: comp, opts: o}
	c.conn, c.exec = c.executor(db)
	return c, nil
}

func (c *Client) executor(q executor.Querier) (*executor.SQLConnection, *executor.Executor) {
	var copts []executor.ConnectionOption
	if c.opts.prepare {
		copts = append(copts, executor.WithPreparedStatements())
	}
	conn := executor.NewSQLConnection(q, copts...)
	return conn, executor.New(conn, executor.Options{
		Diagnostics: c.opts.compiler.Diagnostics,
		Intercept:   chain(c.opts.middlewares),
	})
}

// Connect establishes the database connection
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Disconnect closes the database connection
func (c *Client) Disconnect(ctx context.Context) error {
	c.conn.ClearStmtCache()
	return c.db.Close()
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Compiler returns the query compiler of the client
func (c *Client) Compiler() *compiler.Compiler {
	return c.compiler
}

// CacheStats returns the statistics of the compiled-query cache
func (c *Client) CacheStats() cache.Stats {
	return c.compiler.CacheStats()
}

// Query compiles q and returns an enumerator over its results. The query
// runs on the first call to Next.
func (c *Client) Query(q ast.Query, values map[string]any) (*executor.Enumerator, error) {
	return query(c.compiler, c.exec, q, values)
}

// Result runs q and returns its results according to its terminal
// operator: a []any for sequences, otherwise the single result.
func (c *Client) Result(ctx context.Context, q ast.Query, values map[string]any) (any, error) {
	e, err := c.Query(q, values)
	if err != nil {
		return nil, err
	}
	return e.Result(ctx)
}

// Explain returns the commands q runs for values, the main command first
func (c *Client) Explain(q ast.Query, values map[string]any) ([]string, error) {
	return Explain(c.compiler, q, values)
}

// Explain returns the commands q runs for values when compiled by comp
func Explain(comp *compiler.Compiler, q ast.Query, values map[string]any) ([]string, error) {
	cq, err := comp.Compile(q)
	if err != nil {
		return nil, err
	}
	cmd, _, err := cq.Command(values)
	if err != nil {
		return nil, err
	}
	out := []string{cmd.Text}
	for i := range cq.Related {
		cmd, _, err := cq.RelatedCommand(i, values)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd.Text)
	}
	return out, nil
}

func query(comp *compiler.Compiler, x *executor.Executor, q ast.Query, values map[string]any) (*executor.Enumerator, error) {
	cq, err := comp.Compile(q)
	if err != nil {
		return nil, err
	}
	return x.Enumerate(cq, values), nil
}

// Querier runs queries; it is implemented by Client and Tx
type Querier interface {
	Query(q ast.Query, values map[string]any) (*executor.Enumerator, error)
}

// ToSlice runs q and returns its results as T
func ToSlice[T any](ctx context.Context, c Querier, q ast.Query, values map[string]any) ([]T, error) {
	e, err := c.Query(q, values)
	if err != nil {
		return nil, err
	}
	var out []T
	for v, err := range e.Iter(ctx) {
		if err != nil {
			return nil, err
		}
		t, ok := v.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("result of type %T is not %T", v, zero)
		}
		out = append(out, t)
	}
	return out, nil
}

// One runs q and returns its single result as T. A missing result allowed
// by the operator is returned as the zero value.
func One[T any](ctx context.Context, c Querier, q ast.Query, values map[string]any) (T, error) {
	var zero T
	e, err := c.Query(q, values)
	if err != nil {
		return zero, err
	}
	v, err := e.Result(ctx)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("result of type %T is not %T", v, zero)
	}
	return t, nil
}
