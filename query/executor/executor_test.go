package executor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/diagnostics"
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/executor"
	"github.com/satishbabariya/relquery/query/sqlgen"
)

type blog struct {
	ID     int
	Name   string
	Rating *int
	Posts  []*post
}

type post struct {
	ID     int
	BlogID int
	Title  string
}

func testModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewBuilder()
	b.Entity("Blog", blog{}).Table("blogs").HasMany("Posts", "Post", "BlogID")
	b.Entity("Post", post{}).Table("posts")
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func compile(t *testing.T, q ast.Query) *compiler.CompiledQuery {
	t.Helper()
	c, err := compiler.NewCompiler(testModel(t), compiler.Options{Provider: "sqlite"})
	require.NoError(t, err)
	cq, err := c.Compile(q)
	require.NoError(t, err)
	return cq
}

func names() ast.Query {
	return &ast.Select{Source: &ast.EntitySource{Entity: "Blog"}, Selector: ast.Fn("b", ast.P("b.Name"))}
}

func count() ast.Query {
	return &ast.Terminal{Source: &ast.EntitySource{Entity: "Blog"}, Op: ast.OpCount}
}

// fakeReader serves fixed single-column rows
type fakeReader struct {
	rows   [][]any
	pos    int
	closed bool
	block  chan struct{}
}

func (r *fakeReader) Next(ctx context.Context) (bool, error) {
	if r.block != nil {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-r.block:
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if r.pos >= len(r.rows) {
		return false, nil
	}
	r.pos++
	return true, nil
}

func (r *fakeReader) IsNull(i int) bool { return r.rows[r.pos-1][i] == nil }
func (r *fakeReader) Value(i int) any   { return r.rows[r.pos-1][i] }
func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeConn struct {
	guard    executor.Guard
	mu       sync.Mutex
	rows     [][]any
	err      error
	block    chan struct{}
	commands []string
	readers  []*fakeReader
}

func (c *fakeConn) Guard() *executor.Guard { return &c.guard }

func (c *fakeConn) Query(ctx context.Context, cmd *sqlgen.Command, args []any) (executor.RowReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd.Text)
	if c.err != nil {
		return nil, c.err
	}
	r := &fakeReader{rows: c.rows, block: c.block}
	c.readers = append(c.readers, r)
	return r, nil
}

func TestExecutionIsLazy(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"a"}, {"b"}}}
	e := executor.New(conn, executor.Options{}).Enumerate(compile(t, names()), nil)
	assert.Empty(t, conn.commands)

	ctx := context.Background()
	require.True(t, e.Next(ctx))
	assert.Equal(t, "a", e.Current())
	require.Len(t, conn.commands, 1)
	assert.True(t, strings.HasPrefix(conn.commands[0], "SELECT"))

	require.True(t, e.Next(ctx))
	assert.Equal(t, "b", e.Current())
	assert.False(t, e.Next(ctx))
	assert.NoError(t, e.Err())
	assert.True(t, conn.readers[0].closed)
	assert.Len(t, conn.commands, 1)
}

func TestAllAndIter(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"a"}, {"b"}, {"c"}}}
	x := executor.New(conn, executor.Options{})
	cq := compile(t, names())

	all, err := x.Enumerate(cq, nil).All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, all)

	var seen []any
	for v, err := range x.Enumerate(cq, nil).Iter(context.Background()) {
		require.NoError(t, err)
		seen = append(seen, v)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []any{"a", "b"}, seen)
	assert.True(t, conn.readers[1].closed)
}

func TestConcurrentUseIsRejected(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"a"}}}
	e := executor.New(conn, executor.Options{}).Enumerate(compile(t, names()), nil)

	require.NoError(t, conn.Guard().Enter())
	assert.False(t, e.Next(context.Background()))
	assert.ErrorIs(t, e.Err(), executor.ErrConcurrentUse)
	assert.Empty(t, conn.commands)
	conn.Guard().Exit()
}

func TestGuardIsReleasedBetweenCalls(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"a"}, {"b"}}}
	x := executor.New(conn, executor.Options{})
	cq := compile(t, names())
	first := x.Enumerate(cq, nil)
	second := x.Enumerate(cq, nil)
	ctx := context.Background()

	require.True(t, first.Next(ctx))
	require.True(t, second.Next(ctx))
	require.True(t, first.Next(ctx))
	assert.NoError(t, first.Err())
	assert.NoError(t, second.Err())
}

func TestCloseReleasesReaders(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"a"}, {"b"}}}
	e := executor.New(conn, executor.Options{}).Enumerate(compile(t, names()), nil)
	require.True(t, e.Next(context.Background()))
	require.NoError(t, e.Close())
	assert.True(t, conn.readers[0].closed)
	require.NoError(t, e.Close())

	assert.False(t, e.Next(context.Background()))
	assert.ErrorIs(t, e.Err(), executor.ErrEnumeratorClosed)
}

func TestCancellation(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{"a"}}, block: make(chan struct{})}
	e := executor.New(conn, executor.Options{}).Enumerate(compile(t, names()), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() { done <- e.Next(ctx) }()
	cancel()
	assert.False(t, <-done)
	assert.ErrorIs(t, e.Err(), context.Canceled)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.readers[0].closed)
}

func TestCommandFailure(t *testing.T) {
	var mu sync.Mutex
	var kinds []diagnostics.Kind
	sink := diagnostics.SinkFunc(func(e diagnostics.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
	})
	boom := errors.New("boom")
	conn := &fakeConn{err: boom}
	e := executor.New(conn, executor.Options{Diagnostics: sink}).Enumerate(compile(t, names()), nil)

	assert.False(t, e.Next(context.Background()))
	assert.ErrorIs(t, e.Err(), boom)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []diagnostics.Kind{diagnostics.CommandFailed, diagnostics.IterationFailed}, kinds)
}

func TestInterceptor(t *testing.T) {
	conn := &fakeConn{rows: [][]any{{int64(4)}}}
	var seen []string
	x := executor.New(conn, executor.Options{
		Intercept: func(ctx context.Context, cmd *sqlgen.Command, args []any, exec func(context.Context) error) error {
			seen = append(seen, cmd.Text)
			return exec(ctx)
		},
	})
	v, err := x.Enumerate(compile(t, count()), nil).Result(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, v)
	require.Len(t, seen, 1)
	assert.Contains(t, seen[0], "COUNT(*)")
}

func TestResultCardinality(t *testing.T) {
	blogs := func() ast.Query { return names() }
	for name, tc := range map[string]struct {
		op   ast.TerminalOp
		rows [][]any
		want any
		err  error
	}{
		"first":                 {ast.OpFirst, [][]any{{"a"}}, "a", nil},
		"first empty":           {ast.OpFirst, nil, nil, executor.ErrNoElements},
		"first or default":      {ast.OpFirstOrDefault, nil, nil, nil},
		"single":                {ast.OpSingle, [][]any{{"a"}}, "a", nil},
		"single too many":       {ast.OpSingle, [][]any{{"a"}, {"b"}}, nil, executor.ErrMoreThanOneElement},
		"single or default":     {ast.OpSingleOrDefault, nil, nil, nil},
		"single or default two": {ast.OpSingleOrDefault, [][]any{{"a"}, {"b"}}, nil, executor.ErrMoreThanOneElement},
	} {
		t.Run(name, func(t *testing.T) {
			conn := &fakeConn{rows: tc.rows}
			q := &ast.Terminal{Source: blogs(), Op: tc.op}
			v, err := executor.New(conn, executor.Options{}).Enumerate(compile(t, q), nil).Result(context.Background())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
		})
	}
}
