package client_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/runtime/client"
)

type user struct {
	ID    int
	Email string
	Age   *int
}

func newClient(t *testing.T, opts ...client.Option) *client.Client {
	t.Helper()
	b := metadata.NewBuilder()
	b.Entity("User", user{}).Table("users")
	model, err := b.Build()
	require.NoError(t, err)

	c, err := client.New("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), model, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Disconnect(context.Background()) })
	require.NoError(t, c.Connect(context.Background()))

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL, age INTEGER)`,
		`INSERT INTO users (id, email, age) VALUES (1, 'a@x.io', 30), (2, 'b@x.io', NULL)`,
	} {
		_, err := c.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return c
}

func users() ast.Query { return &ast.EntitySource{Entity: "User"} }

func byEmail() ast.Query {
	return &ast.Where{Source: users(), Predicate: ast.Fn("u", ast.Eq(ast.P("u.Email"), ast.Param("email")))}
}

func TestToSliceAndOne(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	all, err := client.ToSlice[*user](ctx, c, users(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	u, err := client.One[*user](ctx, c, &ast.Terminal{Source: byEmail(), Op: ast.OpSingle}, map[string]any{"email": "b@x.io"})
	require.NoError(t, err)
	assert.Equal(t, 2, u.ID)
	assert.Nil(t, u.Age)

	none, err := client.One[*user](ctx, c, &ast.Terminal{Source: byEmail(), Op: ast.OpFirstOrDefault}, map[string]any{"email": "z@x.io"})
	require.NoError(t, err)
	assert.Nil(t, none)

	n, err := c.Result(ctx, &ast.Terminal{Source: users(), Op: ast.OpCount}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestMiddlewareSeesCommands(t *testing.T) {
	var mu sync.Mutex
	var logged []string
	var failed []error
	c := newClient(t,
		client.WithMiddleware(
			client.LoggingMiddleware(func(format string, args ...any) {
				mu.Lock()
				defer mu.Unlock()
				logged = append(logged, fmt.Sprintf(format, args...))
			}),
			client.TimingMiddleware(func(query string, d time.Duration) { assert.NotEmpty(t, query) }),
			client.ErrorMiddleware(func(query string, err error) {
				mu.Lock()
				defer mu.Unlock()
				failed = append(failed, err)
			}),
		),
		client.WithPreparedStatements(),
	)

	_, err := client.ToSlice[*user](context.Background(), c, byEmail(), map[string]any{"email": "a@x.io"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, logged, 2)
	assert.Contains(t, logged[0], `"email" = ?`)
	assert.Contains(t, logged[0], "a@x.io")
	assert.Empty(t, failed)
}

func TestTransaction(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(tx *client.Tx) error {
		all, err := client.ToSlice[*user](ctx, tx, users(), nil)
		if err != nil {
			return err
		}
		assert.Len(t, all, 2)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = c.Transaction(ctx, func(tx *client.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestExplain(t *testing.T) {
	c := newClient(t)
	cmds, err := c.Explain(byEmail(), map[string]any{"email": "a@x.io"})
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Contains(t, cmds[0], `FROM "users"`)
}

func TestUnsupportedProvider(t *testing.T) {
	_, err := client.New("oracle", "", nil)
	assert.Error(t, err)
}

func TestIsolationLevels(t *testing.T) {
	assert.Equal(t, "Serializable", client.Serializable.ToSQLIsolationLevel().String())
	assert.Equal(t, "Read Committed", client.IsolationLevel(42).ToSQLIsolationLevel().String())
}
