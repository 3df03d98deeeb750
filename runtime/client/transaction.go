package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/executor"
)

// IsolationLevel represents transaction isolation levels
type IsolationLevel int

const (
	// ReadUncommitted allows dirty reads
	ReadUncommitted IsolationLevel = iota
	// ReadCommitted prevents dirty reads (default)
	ReadCommitted
	RepeatableRead
	Serializable
)

// ToSQLIsolationLevel converts IsolationLevel to sql.IsolationLevel
func (level IsolationLevel) ToSQLIsolationLevel() sql.IsolationLevel {
	switch level {
	case ReadUncommitted:
		return sql.LevelReadUncommitted
	case RepeatableRead:
		return sql.LevelRepeatableRead
	case Serializable:
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}

// Tx runs queries inside a database transaction. Its queries share one
// connection, so results must be read one enumeration at a time and split
// queries need a driver that keeps several result sets open.
type Tx struct {
	*sql.Tx
	compiler *compiler.Compiler
	exec     *executor.Executor
}

// Query compiles q and returns an enumerator running it in the transaction
func (tx *Tx) Query(q ast.Query, values map[string]any) (*executor.Enumerator, error) {
	return query(tx.compiler, tx.exec, q, values)
}

// TransactionFunc is a function that runs within a transaction
type TransactionFunc func(tx *Tx) error

// Transaction executes fn within a read-only transaction. The transaction
// is rolled back when fn fails or panics and committed otherwise.
func (c *Client) Transaction(ctx context.Context, fn TransactionFunc) error {
	return c.TransactionWithOptions(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// TransactionWithIsolation executes a read-only transaction with a specific
// isolation level
func (c *Client) TransactionWithIsolation(ctx context.Context, isolation IsolationLevel, fn TransactionFunc) error {
	return c.TransactionWithOptions(ctx, &sql.TxOptions{Isolation: isolation.ToSQLIsolationLevel(), ReadOnly: true}, fn)
}

// TransactionWithOptions executes a transaction with custom options
func (c *Client) TransactionWithOptions(ctx context.Context, opts *sql.TxOptions, fn TransactionFunc) error {
	sqlTx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	conn, exec := c.executor(sqlTx)
	tx := &Tx{Tx: sqlTx, compiler: c.compiler, exec: exec}
	defer conn.ClearStmtCache()

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
