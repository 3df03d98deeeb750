package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/query/ast"
)

func TestQueryBuilder(t *testing.T) {
	q := From("Blog").
		WhereBuilder(NewWhereBuilder("x").GreaterThan("Rating", Parameter("min")).IsNotNull("Name")).
		OrderBy("Name", "ASC").
		OrderBy("ID", "desc").
		Skip(5).
		Take(10).
		Include("Posts", IncludeWhere(NewWhereBuilder("p").StartsWith("Title", "a")), IncludeTake(2)).
		Build()

	assert.Equal(t,
		`Entity(Blog).Where(b => ((b.Rating > @min) && (b.Name != null))).OrderBy(b => b.Name).ThenByDescending(b => b.ID).Skip(int(5)).Take(int(10)).Include(Posts, where p => p.Title.StartsWith("a"), take int(2))`,
		ast.Format(q))
}

func TestQueryBuilderTerminals(t *testing.T) {
	tests := []struct {
		name string
		q    ast.Query
		want string
	}{
		{"count", From("Post").Count(), "Entity(Post).Count()"},
		{"first", From("Post").First(), "Entity(Post).First()"},
		{"sum", From("Post").Sum("Likes"), "Entity(Post).Sum(p => p.Likes)"},
		{"any", From("Post").Any(ast.Gt(ast.P("p.Likes"), ast.C(3))), "Entity(Post).Any(p => (p.Likes > int(3)))"},
		{"contains", FromParameter("ids").Contains(7), "ParamSource(@ids).Contains(int(7))"},
		{"select", From("Blog").Select("Name", "Owner.Email").Build(), "Entity(Blog).Select(b => new {Name = b.Name, Email = b.Owner.Email})"},
		{"union", From("Blog").Union(From("Blog").Take(1)).Build(), "Entity(Blog).Union(Entity(Blog).Take(int(1)))"},
		{"split", From("Blog").Include("Posts").AsSplitQuery().Build(), "Entity(Blog).Include(Posts).AsSplitQuery()"},
		{"raw", FromRaw("Blog", "SELECT * FROM blogs WHERE id = {0}", Parameter("id")).Build(), `Raw(Blog, "SELECT * FROM blogs WHERE id = {0}", @id)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ast.Format(tt.q))
		})
	}
}

func TestWhereBuilderGroups(t *testing.T) {
	w := NewWhereBuilder("b")
	w.OR(
		NewWhereBuilder("b").Equals("Name", "a"),
		NewWhereBuilder("x").Equals("Name", "b"),
	).NOT(NewWhereBuilder("b").In("ID", []any{1, 2}))
	assert.Equal(t, `(((b.Name == "a") || (b.Name == "b")) && !b.ID in [int(1), int(2)])`, ast.FormatExpr(w.Build().Body))

	empty := NewWhereBuilder("b")
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "bool(true)", ast.FormatExpr(empty.Build().Body))
}

func TestWhereBuilderCollections(t *testing.T) {
	w := NewWhereBuilder("b").
		Some("Posts", NewWhereBuilder("p").Contains("Title", "go")).
		None("Posts", nil)
	assert.Equal(t, `({Nav(b.Posts).Any(p => p.Title.Contains("go"))} && !{Nav(b.Posts).Any()})`, ast.FormatExpr(w.Build().Body))

	every := NewWhereBuilder("b").Every("Posts", nil)
	assert.Equal(t, `{Nav(b.Posts).All(_ => bool(true))}`, ast.FormatExpr(every.Build().Body))
}

func TestParseJSON(t *testing.T) {
	q, err := ParseJSON([]byte(`{
		"model": "Blog",
		"action": "findMany",
		"where": {"rating": {"gt": "$min"}, "name": {"not": null}, "posts": {"some": {"title": {"startsWith": "go"}}}},
		"orderBy": [{"name": "asc"}, {"id": "desc"}],
		"include": {"posts": {"where": {"published": true}, "orderBy": {"id": "asc"}, "take": 2, "include": {"comments": true}}},
		"skip": 1,
		"take": "$n"
	}`))
	require.NoError(t, err)
	assert.Equal(t,
		`Entity(Blog).Where(b => (((b.name != null) && {Nav(b.posts).Any(p0 => p0.title.StartsWith("go"))}) && (b.rating > @min))).OrderBy(b => b.name).ThenByDescending(b => b.id).Skip(int(1)).Take(@n).Include(posts, where e => (e.published == bool(true)), order e => e.id, take int(2)).Include(posts.comments)`,
		ast.Format(q))
}

func TestParseJSONActions(t *testing.T) {
	tests := []struct {
		doc  string
		want string
	}{
		{`{"model":"Post","action":"count"}`, "Entity(Post).Count()"},
		{`{"model":"Post","action":"findFirst","where":{"id":{"in":[1,2,null]}}}`, "Entity(Post).Where(p => p.id in [int64(1), int64(2), null]).FirstOrDefault()"},
		{`{"model":"Post","action":"findUnique","where":{"id":"$id"}}`, "Entity(Post).Where(p => (p.id == @id)).SingleOrDefault()"},
		{`{"model":"Post","where":{"id":{"notIn":"$ids"}}}`, "Entity(Post).Where(p => !p.id in @ids)"},
		{`{"model":"Post","where":{"author":{"is":{"name":"ann"}}}}`, `Entity(Post).Where(p => (p.author.name == "ann"))`},
		{`{"model":"Post","action":"max","field":"likes"}`, "Entity(Post).Max(p => p.likes)"},
		{`{"model":"Post","relationLoadStrategy":"query","include":{"tags":true}}`, "Entity(Post).Include(tags).AsSplitQuery()"},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			q, err := ParseJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.Format(q))
		})
	}
}

func TestParseJSONErrors(t *testing.T) {
	docs := []string{
		`{"action":"findMany"}`,
		`{"model":"Post","action":"upsert"}`,
		`{"model":"Post","where":{"id":{"near":1}}}`,
		`{"model":"Post","take":-1}`,
		`{"model":"Post","orderBy":{"id":"up"}}`,
		`{"model":"Post","unknown":1}`,
		`{"model":"Post","action":"sum"}`,
	}
	for _, doc := range docs {
		_, err := ParseJSON([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidQuery, doc)
	}
}
