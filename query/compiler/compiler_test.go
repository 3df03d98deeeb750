package compiler_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/diagnostics"
	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/builder"
	"github.com/satishbabariya/relquery/query/compiler"
	"github.com/satishbabariya/relquery/query/postprocess"
	"github.com/satishbabariya/relquery/query/translate"
)

type blog struct {
	ID     int
	Name   string
	Rating *int
	Posts  []*post
	Tags   []*tag
}

type post struct {
	ID     int
	BlogID int
	Title  string
}

type tag struct {
	ID     int
	BlogID int
	Label  string
}

func testModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewBuilder()
	b.Entity("Blog", blog{}).
		Table("blogs").
		HasMany("Posts", "Post", "BlogID").
		HasMany("Tags", "Tag", "BlogID")
	b.Entity("Post", post{}).Table("posts")
	b.Entity("Tag", tag{}).Table("tags")
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func newCompiler(t *testing.T, opts compiler.Options) *compiler.Compiler {
	t.Helper()
	c, err := compiler.NewCompiler(testModel(t), opts)
	require.NoError(t, err)
	return c
}

func byName() ast.Query {
	return builder.From("Blog").WhereBuilder(builder.NewWhereBuilder("b").Equals("Name", builder.Parameter("name"))).Build()
}

func TestCompileIsCached(t *testing.T) {
	c := newCompiler(t, compiler.Options{Provider: "sqlite"})
	first, err := c.Compile(byName())
	require.NoError(t, err)
	second, err := c.Compile(byName())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), c.CacheStats().Hits)
	assert.Equal(t, translate.Sequence, first.Cardinality)
	assert.Equal(t, "sqlite", c.Provider())
}

func TestOptionsArePartOfTheKey(t *testing.T) {
	single := newCompiler(t, compiler.Options{})
	split := newCompiler(t, compiler.Options{SplitQuery: true})
	assert.NotEqual(t, single.Key(byName()), split.Key(byName()))
	assert.Equal(t, single.Key(byName()), newCompiler(t, compiler.Options{}).Key(byName()))
}

func TestCommandIsCachedByParameterShape(t *testing.T) {
	c := newCompiler(t, compiler.Options{Provider: "postgresql"})
	cq, err := c.Compile(byName())
	require.NoError(t, err)

	a, args, err := cq.Command(map[string]any{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, args)
	assert.Contains(t, a.Text, `"name" = $1`)

	b, args, err := cq.Command(map[string]any{"name": "b"})
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, []any{"b"}, args)
	assert.Equal(t, 1, cq.CachedCommands())

	_, _, err = cq.Command(map[string]any{"name": nil})
	require.NoError(t, err)
	assert.Equal(t, 2, cq.CachedCommands())
}

func TestValueDependentCommandsAreNotCached(t *testing.T) {
	c := newCompiler(t, compiler.Options{Provider: "postgresql", NullSemantics: postprocess.Emulated})
	q := builder.From("Blog").WhereBuilder(builder.NewWhereBuilder("b").Equals("Rating", builder.Parameter("r"))).Build()
	cq, err := c.Compile(q)
	require.NoError(t, err)

	cmd, args, err := cq.Command(map[string]any{"r": 3})
	require.NoError(t, err)
	assert.NotContains(t, cmd.Text, "IS NULL")
	assert.Equal(t, []any{3}, args)

	cmd, _, err = cq.Command(map[string]any{"r": nil})
	require.NoError(t, err)
	assert.Contains(t, cmd.Text, `"rating" IS NULL`)
	assert.Equal(t, 0, cq.CachedCommands())
}

func TestArrayParametersAreExpanded(t *testing.T) {
	c := newCompiler(t, compiler.Options{Provider: "sqlite"})
	q := builder.From("Blog").WhereBuilder(builder.NewWhereBuilder("b").InParam("ID", "ids")).Build()
	cq, err := c.Compile(q)
	require.NoError(t, err)

	cmd, args, err := cq.Command(map[string]any{"ids": []int{1, 2, 3}})
	require.NoError(t, err)
	assert.Contains(t, cmd.Text, `"id" IN (1, 2, 3)`)
	assert.Empty(t, args)
	assert.Equal(t, 0, cq.CachedCommands())

	_, _, err = cq.Command(map[string]any{})
	assert.Error(t, err)
}

func TestSplitQueryRelatedCommands(t *testing.T) {
	c := newCompiler(t, compiler.Options{Provider: "sqlite"})
	cq, err := c.Compile(builder.From("Blog").Include("Posts").AsSplitQuery().Build())
	require.NoError(t, err)
	require.Len(t, cq.Related, 1)
	assert.Equal(t, 1, cq.Program.Queries())

	cmd, _, err := cq.RelatedCommand(0, nil)
	require.NoError(t, err)
	assert.Contains(t, cmd.Text, `"posts"`)

	_, _, err = cq.RelatedCommand(1, nil)
	assert.ErrorIs(t, err, compiler.ErrNoRelatedQuery)
}

func TestMultipleCollectionIncludeIsReported(t *testing.T) {
	var mu sync.Mutex
	var kinds []diagnostics.Kind
	sink := diagnostics.SinkFunc(func(e diagnostics.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
	})
	c := newCompiler(t, compiler.Options{Diagnostics: sink})
	_, err := c.Compile(builder.From("Blog").Include("Posts").Include("Tags").Build())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, diagnostics.QueryCompiled)
	assert.Contains(t, kinds, diagnostics.MultipleCollectionInclude)
}

func TestCompileErrors(t *testing.T) {
	_, err := compiler.NewCompiler(testModel(t), compiler.Options{Provider: "oracle"})
	assert.Error(t, err)

	_, err = compiler.NewCompiler(nil, compiler.Options{})
	assert.ErrorIs(t, err, compiler.ErrInvalidQuery)

	c := newCompiler(t, compiler.Options{})
	_, err = c.Compile(builder.From("Missing").Build())
	assert.True(t, errors.Is(err, translate.ErrTranslationFailed))

	_, err = c.Compile(nil)
	assert.ErrorIs(t, err, compiler.ErrInvalidQuery)
}

func TestConcurrentCommands(t *testing.T) {
	c := newCompiler(t, compiler.Options{})
	cq, err := c.Compile(byName())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := cq.Command(map[string]any{"name": "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cq.CachedCommands())
}
