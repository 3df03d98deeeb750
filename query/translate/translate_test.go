package translate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/ast"
	"github.com/satishbabariya/relquery/query/ir"
	"github.com/satishbabariya/relquery/query/shaper"
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
	Blog   *blog
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
	b.Entity("Post", post{}).Table("posts").BelongsTo("Blog", "Blog", "BlogID")
	b.Entity("Tag", tag{}).Table("tags")
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func translateQuery(t *testing.T, q ast.Query, opts translate.Options) *translate.Result {
	t.Helper()
	res, err := translate.New(testModel(t), nil, opts).Translate(q)
	require.NoError(t, err)
	return res
}

func blogs() ast.Query { return &ast.EntitySource{Entity: "Blog"} }

func posts() ast.Query { return &ast.EntitySource{Entity: "Post"} }

func TestTranslateIsDeterministic(t *testing.T) {
	q := &ast.Take{
		Source: &ast.OrderBy{
			Source: &ast.Where{Source: blogs(), Predicate: ast.Fn("b", ast.Eq(ast.P("b.Name"), ast.Param("name")))},
			Key:    ast.Fn("b", ast.P("b.Name")),
		},
		Count: ast.C(10),
	}
	tr := translate.New(testModel(t), nil, translate.Options{})
	first, err := tr.Translate(q)
	require.NoError(t, err)
	second, err := tr.Translate(q)
	require.NoError(t, err)

	assert.True(t, ir.Equal(first.Select, second.Select))
	assert.Equal(t, translate.Sequence, first.Cardinality)
	assert.Contains(t, ir.Print(first.Select), "@name")
	assert.Contains(t, ir.Print(first.Select), "LIMIT 10")
}

func TestParameterMappingIsInferred(t *testing.T) {
	res := translateQuery(t, &ast.Where{
		Source:    blogs(),
		Predicate: ast.Fn("b", ast.Eq(ast.P("b.Name"), ast.Param("name"))),
	}, translate.Options{})

	e, _ := testModel(t).Entity("Blog")
	name, _ := e.Property("Name")
	require.Contains(t, res.Parameters, "name")
	assert.Equal(t, name.Mapping.Kind, res.Parameters["name"].Kind)
}

func TestAmbiguousParameterMapping(t *testing.T) {
	q := &ast.Where{
		Source: blogs(),
		Predicate: ast.Fn("b", ast.And(
			ast.Eq(ast.P("b.Name"), ast.Param("p")),
			ast.Eq(ast.P("b.ID"), ast.Param("p")),
		)),
	}
	_, err := translate.New(testModel(t), nil, translate.Options{}).Translate(q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, translate.ErrAmbiguousTypeMapping))
	assert.True(t, errors.Is(err, translate.ErrTranslationFailed))
}

func TestUnknownConstructs(t *testing.T) {
	tr := translate.New(testModel(t), nil, translate.Options{})
	for name, q := range map[string]ast.Query{
		"entity": &ast.EntitySource{Entity: "Missing"},
		"member": &ast.Where{Source: blogs(), Predicate: ast.Fn("b", ast.Eq(ast.P("b.Missing"), ast.C(1)))},
		"method": &ast.Where{Source: blogs(), Predicate: ast.Fn("b", ast.Method(ast.P("b.Name"), "Frobnicate"))},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Translate(q)
			require.Error(t, err)
			assert.True(t, errors.Is(err, translate.ErrTranslationFailed))
			var te *translate.TranslationError
			assert.True(t, errors.As(err, &te))
		})
	}
}

func TestFirstAndSingleLimitRows(t *testing.T) {
	for _, tc := range []struct {
		op    ast.TerminalOp
		card  translate.Cardinality
		limit string
	}{
		{ast.OpFirst, translate.First, "LIMIT 1"},
		{ast.OpFirstOrDefault, translate.FirstOrDefault, "LIMIT 1"},
		{ast.OpSingle, translate.Single, "LIMIT 2"},
		{ast.OpSingleOrDefault, translate.SingleOrDefault, "LIMIT 2"},
	} {
		t.Run(string(tc.op), func(t *testing.T) {
			res := translateQuery(t, &ast.Terminal{Source: blogs(), Op: tc.op}, translate.Options{})
			assert.Equal(t, tc.card, res.Cardinality)
			assert.Contains(t, ir.Print(res.Select), tc.limit)
			_, ok := res.Shape.Root.(*shaper.Entity)
			assert.True(t, ok)
		})
	}
}

func TestCountAndAny(t *testing.T) {
	res := translateQuery(t, &ast.Terminal{Source: blogs(), Op: ast.OpCount}, translate.Options{})
	assert.Equal(t, translate.Scalar, res.Cardinality)
	assert.Contains(t, ir.Print(res.Select), "COUNT(*)")
	_, ok := res.Shape.Root.(*shaper.Scalar)
	assert.True(t, ok)

	res = translateQuery(t, &ast.Terminal{
		Source: blogs(),
		Op:     ast.OpAny,
		Lambda: ast.Fn("b", ast.Eq(ast.P("b.Name"), ast.C("go"))),
	}, translate.Options{})
	assert.Equal(t, translate.Scalar, res.Cardinality)
	text := ir.Print(res.Select)
	assert.Contains(t, text, "EXISTS")
	assert.Contains(t, text, "'go'")
}

func TestReferenceNavigationJoins(t *testing.T) {
	res := translateQuery(t, &ast.Where{
		Source:    posts(),
		Predicate: ast.Fn("p", ast.Eq(ast.P("p.Blog.Name"), ast.C("go"))),
	}, translate.Options{})
	text := ir.Print(res.Select)
	assert.Contains(t, text, "JOIN blogs")
	assert.Contains(t, text, "'go'")
}

func TestInWithConstantValues(t *testing.T) {
	res := translateQuery(t, &ast.Where{
		Source:    blogs(),
		Predicate: ast.Fn("b", &ast.In{Item: ast.P("b.ID"), Values: []any{1, 2, 3}}),
	}, translate.Options{})
	assert.Contains(t, ir.Print(res.Select), "IN (1, 2, 3)")
}

func TestInWithArrayParameter(t *testing.T) {
	res := translateQuery(t, &ast.Where{
		Source:    blogs(),
		Predicate: ast.Fn("b", &ast.In{Item: ast.P("b.ID"), Parameter: "ids"}),
	}, translate.Options{})
	assert.Contains(t, ir.Print(res.Select), "IN @ids")
	require.Contains(t, res.Parameters, "ids")
}

func TestIncludeCollectionSingleQuery(t *testing.T) {
	res := translateQuery(t, &ast.Include{Source: blogs(), Path: []string{"Posts"}}, translate.Options{})
	assert.Empty(t, res.Related)
	assert.NotEmpty(t, res.Shape.Identifier)
	assert.Contains(t, ir.Print(res.Select), "LEFT JOIN posts")

	root, ok := res.Shape.Root.(*shaper.Entity)
	require.True(t, ok)
	require.Len(t, root.Includes, 1)
	coll, ok := root.Includes[0].Value.(*shaper.Collection)
	require.True(t, ok)
	assert.NotEmpty(t, coll.Outer)
	assert.NotEmpty(t, coll.Self)

	_, err := shaper.Compile(res.Shape, shaper.Options{})
	assert.NoError(t, err)
}

func TestIncludeCollectionSplitQuery(t *testing.T) {
	q := &ast.QueryMode{Source: &ast.Include{Source: blogs(), Path: []string{"Posts"}}, Split: true}
	res := translateQuery(t, q, translate.Options{})
	require.Len(t, res.Related, 1)
	assert.NotContains(t, ir.Print(res.Select), "posts")

	related := ir.Print(res.Related[0])
	assert.Contains(t, related, "INNER JOIN posts")
	assert.Contains(t, related, "ORDER BY")

	root := res.Shape.Root.(*shaper.Entity)
	require.Len(t, root.Includes, 1)
	split, ok := root.Includes[0].Value.(*shaper.SplitCollection)
	require.True(t, ok)
	assert.Equal(t, 0, split.Query)
	assert.Len(t, split.Parent, len(split.ChildParent))

	p, err := shaper.Compile(res.Shape, shaper.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Queries())
	assert.True(t, p.Streaming())
}

func TestSplitOptionMatchesQueryMode(t *testing.T) {
	include := &ast.Include{Source: blogs(), Path: []string{"Posts"}}
	byOption := translateQuery(t, include, translate.Options{SplitQuery: true})
	byMode := translateQuery(t, &ast.QueryMode{Source: include, Split: true}, translate.Options{})
	assert.True(t, ir.Equal(byOption.Select, byMode.Select))
	require.Len(t, byOption.Related, 1)
	assert.True(t, ir.Equal(byOption.Related[0], byMode.Related[0]))
}

func TestMultipleCollectionIncludesWarn(t *testing.T) {
	q := &ast.Include{
		Source: &ast.Include{Source: blogs(), Path: []string{"Posts"}},
		Path:   []string{"Tags"},
	}
	res := translateQuery(t, q, translate.Options{})
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, translate.WarnMultipleCollectionInclude, res.Warnings[0].Code)

	res = translateQuery(t, q, translate.Options{SplitQuery: true})
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Related, 2)
}

func TestIncludeWithPagingUsesRowNumber(t *testing.T) {
	q := &ast.Include{
		Source:    blogs(),
		Path:      []string{"Posts"},
		Orderings: []ast.IncludeOrdering{{Key: ast.Fn("p", ast.P("p.Title"))}},
		Take:      ast.C(3),
	}
	res := translateQuery(t, q, translate.Options{})
	text := ir.Print(res.Select)
	assert.Contains(t, text, "ROW_NUMBER() OVER(PARTITION BY")
	assert.Contains(t, text, "<= 3")
}

func TestGroupedAggregates(t *testing.T) {
	q := &ast.Select{
		Source: &ast.GroupBy{Source: posts(), Key: ast.Fn("p", ast.P("p.BlogID"))},
		Selector: ast.Fn("g", ast.Obj(
			ast.F("BlogID", ast.P("g.Key")),
			ast.F("Posts", ast.Agg(ast.P("g"), ast.OpCount, nil)),
		)),
	}
	res := translateQuery(t, q, translate.Options{})
	text := ir.Print(res.Select)
	assert.Contains(t, text, "GROUP BY")
	assert.Contains(t, text, "COUNT(*)")

	obj, ok := res.Shape.Root.(*shaper.Object)
	require.True(t, ok)
	assert.Len(t, obj.Fields, 2)
}

func TestClientGroupingOrdersByKey(t *testing.T) {
	q := &ast.GroupBy{Source: posts(), Key: ast.Fn("p", ast.P("p.BlogID"))}
	res := translateQuery(t, q, translate.Options{})
	text := ir.Print(res.Select)
	assert.NotContains(t, text, "GROUP BY")
	assert.Contains(t, text, "ORDER BY")

	_, ok := res.Shape.Root.(*shaper.Grouping)
	require.True(t, ok)
	assert.NotEmpty(t, res.Shape.Identifier)
}

func TestCorrelatedCountSubquery(t *testing.T) {
	q := &ast.Select{
		Source: blogs(),
		Selector: ast.Fn("b", ast.Obj(
			ast.F("Name", ast.P("b.Name")),
			ast.F("Posts", ast.Sub(&ast.Terminal{Source: ast.Nav(ast.P("b"), "Posts"), Op: ast.OpCount})),
		)),
	}
	res := translateQuery(t, q, translate.Options{})
	text := ir.Print(res.Select)
	assert.Contains(t, text, "COUNT(*)")
	assert.Contains(t, text, "FROM posts")
	assert.Empty(t, res.Related)
}

func TestProjectionAfterDistinctWraps(t *testing.T) {
	res := translateQuery(t, &ast.Select{
		Source:   &ast.Distinct{Source: blogs()},
		Selector: ast.Fn("b", ast.P("b.Name")),
	}, translate.Options{})

	sub, ok := res.Select.Tables[0].(*ir.SubqueryTable)
	require.True(t, ok, ir.Print(res.Select))
	assert.True(t, sub.Select.Distinct)
	assert.False(t, res.Select.Distinct)
}

func TestDistinctRejectsIncludes(t *testing.T) {
	q := &ast.Distinct{Source: &ast.Include{Source: blogs(), Path: []string{"Posts"}}}
	_, err := translate.New(testModel(t), nil, translate.Options{}).Translate(q)
	assert.True(t, errors.Is(err, translate.ErrTranslationFailed))
}
