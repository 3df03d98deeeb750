package shaper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/metadata"
	"github.com/satishbabariya/relquery/query/shaper"
)

type blogRow struct {
	ID       int
	Name     string
	Posts    []*postRow
	Tags     []tagRow
	Settings *settingsDoc
}

type postRow struct {
	ID     int
	BlogID int
	Title  string
	Blog   *blogRow
}

type tagRow struct {
	ID     int
	BlogID int
	Label  string
}

type settingsDoc struct {
	Theme string `json:"theme"`
}

// rows is an in-memory cursor
type rows struct {
	data [][]any
	i    int
}

func newRows(data ...[]any) *rows { return &rows{data: data, i: -1} }

func (r *rows) Next(context.Context) (bool, error) {
	r.i++
	return r.i < len(r.data), nil
}

func (r *rows) IsNull(o int) bool { return r.data[r.i][o] == nil }
func (r *rows) Value(o int) any   { return r.data[r.i][o] }

func testModel(t *testing.T) *metadata.Model {
	t.Helper()
	b := metadata.NewBuilder()
	b.Complex("Settings", settingsDoc{})
	b.Entity("Blog", blogRow{}).
		Table("blogs").
		HasMany("Posts", "Post", "BlogID").
		HasMany("Tags", "Tag", "BlogID").
		OwnsOne("Settings", "Settings", "settings")
	b.Entity("Post", postRow{}).Table("posts").BelongsTo("Blog", "Blog", "BlogID")
	b.Entity("Tag", tagRow{}).Table("tags")
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func ids(ordinals ...int) []shaper.Identifier {
	out := make([]shaper.Identifier, len(ordinals))
	for i, o := range ordinals {
		out[i] = shaper.Identifier{Ordinal: o, Mapping: metadata.Int}
	}
	return out
}

// bind binds every property of an entity to consecutive ordinals; the key
// is the first property.
func bind(m *metadata.Model, name string, start int) *shaper.Entity {
	e, _ := m.Entity(name)
	n := &shaper.Entity{Type: e, Key: ids(start), Discriminator: -1}
	for i, p := range e.AllProperties() {
		n.Properties = append(n.Properties, shaper.PropertyBinding{Property: p, Ordinal: start + i})
	}
	return n
}

func navigation(m *metadata.Model, entity, name string) *metadata.Navigation {
	e, _ := m.Entity(entity)
	nav, _ := e.Navigation(name)
	return nav
}

func run(t *testing.T, p *shaper.Program, main *rows, sides ...*rows) []any {
	t.Helper()
	ctx := context.Background()
	st := p.NewState(func(_ context.Context, i int) (shaper.Cursor, error) {
		return sides[i], nil
	})
	var out []any
	for {
		ok, err := main.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		v, ready, err := st.ProcessRow(ctx, main)
		require.NoError(t, err)
		if ready {
			out = append(out, v)
		}
	}
	if v, ok := st.Flush(); ok {
		out = append(out, v)
	}
	return out
}

func TestStitchSiblingCollections(t *testing.T) {
	m := testModel(t)
	blog := bind(m, "Blog", 0)
	blog.Includes = []shaper.IncludeBinding{
		{Navigation: navigation(m, "Blog", "Posts"), Value: &shaper.Collection{
			Name: "Posts", Element: bind(m, "Post", 2), Outer: ids(0), Self: ids(2),
		}},
		{Navigation: navigation(m, "Blog", "Tags"), Value: &shaper.Collection{
			Name: "Tags", Element: bind(m, "Tag", 5), Outer: ids(0, 2), Self: ids(5),
		}},
	}
	p, err := shaper.Compile(&shaper.Shape{Root: blog, Identifier: ids(0)}, shaper.Options{})
	require.NoError(t, err)
	assert.False(t, p.Streaming())

	// one blog with 2 posts and 3 tags fanned out into 6 rows, then a blog
	// without children
	main := newRows(
		[]any{int64(1), "a", int64(10), int64(1), "x", int64(20), int64(1), "l0"},
		[]any{int64(1), "a", int64(10), int64(1), "x", int64(21), int64(1), "l1"},
		[]any{int64(1), "a", int64(10), int64(1), "x", int64(22), int64(1), "l2"},
		[]any{int64(1), "a", int64(11), int64(1), "y", int64(20), int64(1), "l0"},
		[]any{int64(1), "a", int64(11), int64(1), "y", int64(21), int64(1), "l1"},
		[]any{int64(1), "a", int64(11), int64(1), "y", int64(22), int64(1), "l2"},
		[]any{int64(2), "b", nil, nil, nil, nil, nil, nil},
	)
	results := run(t, p, main)
	require.Len(t, results, 2)

	first := results[0].(*blogRow)
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "a", first.Name)
	require.Len(t, first.Posts, 2)
	assert.Equal(t, 10, first.Posts[0].ID)
	assert.Equal(t, "y", first.Posts[1].Title)
	require.Len(t, first.Tags, 3)
	assert.Equal(t, []string{"l0", "l1", "l2"}, []string{first.Tags[0].Label, first.Tags[1].Label, first.Tags[2].Label})

	second := results[1].(*blogRow)
	assert.Equal(t, 2, second.ID)
	assert.NotNil(t, second.Posts)
	assert.Empty(t, second.Posts)
	assert.Empty(t, second.Tags)
}

func TestStitchNestedCollections(t *testing.T) {
	b := metadata.NewBuilder()
	b.Entity("Blog", nil).Property("Id", metadata.WithMapping(metadata.Int)).HasMany("Posts", "Post", "BlogId")
	b.Entity("Post", nil).
		Property("Id", metadata.WithMapping(metadata.Int)).
		Property("BlogId", metadata.WithMapping(metadata.Int)).
		HasMany("Comments", "Comment", "PostId")
	b.Entity("Comment", nil).
		Property("Id", metadata.WithMapping(metadata.Int)).
		Property("PostId", metadata.WithMapping(metadata.Int))
	m, err := b.Build()
	require.NoError(t, err)

	post := bind(m, "Post", 1)
	post.Includes = []shaper.IncludeBinding{{
		Navigation: navigation(m, "Post", "Comments"),
		Value:      &shaper.Collection{Element: bind(m, "Comment", 3), Outer: ids(0, 1), Self: ids(3)},
	}}
	blog := bind(m, "Blog", 0)
	blog.Includes = []shaper.IncludeBinding{{
		Navigation: navigation(m, "Blog", "Posts"),
		Value:      &shaper.Collection{Element: post, Outer: ids(0), Self: ids(1)},
	}}
	p, err := shaper.Compile(&shaper.Shape{Root: blog, Identifier: ids(0)}, shaper.Options{})
	require.NoError(t, err)

	main := newRows(
		[]any{1, 10, 1, 100, 10},
		[]any{1, 10, 1, 101, 10},
		[]any{1, 11, 1, nil, nil},
		[]any{2, 20, 2, 200, 20},
	)
	results := run(t, p, main)
	require.Len(t, results, 2)

	posts := results[0].(map[string]any)["Posts"].([]any)
	require.Len(t, posts, 2)
	assert.Len(t, posts[0].(map[string]any)["Comments"], 2)
	assert.Empty(t, posts[1].(map[string]any)["Comments"])

	posts = results[1].(map[string]any)["Posts"].([]any)
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].(map[string]any)["Comments"], 1)
}

func TestSplitCollectionMerge(t *testing.T) {
	m := testModel(t)
	blog := bind(m, "Blog", 0)
	blog.Includes = []shaper.IncludeBinding{{
		Navigation: navigation(m, "Blog", "Posts"),
		Value: &shaper.SplitCollection{
			Name:        "Posts",
			Query:       0,
			Element:     bind(m, "Post", 0),
			Parent:      ids(0),
			ChildParent: ids(3),
			Self:        ids(0),
		},
	}}
	p, err := shaper.Compile(&shaper.Shape{Root: blog, Identifier: ids(0)}, shaper.Options{})
	require.NoError(t, err)
	assert.True(t, p.Streaming())
	assert.Equal(t, 1, p.Queries())

	main := newRows(
		[]any{int64(1), "a"},
		[]any{int64(5), "b"},
		[]any{int64(9), "c"},
	)
	side := newRows(
		[]any{int64(10), int64(1), "x", int64(1)},
		[]any{int64(11), int64(1), "y", int64(1)},
		[]any{int64(90), int64(9), "z", int64(9)},
	)
	results := run(t, p, main, side)
	require.Len(t, results, 3)

	b1, b5, b9 := results[0].(*blogRow), results[1].(*blogRow), results[2].(*blogRow)
	require.Len(t, b1.Posts, 2)
	assert.Equal(t, 10, b1.Posts[0].ID)
	assert.Equal(t, 11, b1.Posts[1].ID)
	assert.NotNil(t, b5.Posts)
	assert.Empty(t, b5.Posts)
	require.Len(t, b9.Posts, 1)
	assert.Equal(t, 90, b9.Posts[0].ID)
	assert.Equal(t, 9, b9.Posts[0].BlogID)
}

func TestDiscriminatorAndOptionalEntity(t *testing.T) {
	b := metadata.NewBuilder()
	b.Entity("Animal", nil).
		Property("Id", metadata.WithMapping(metadata.Int)).
		Property("Kind", metadata.WithMapping(metadata.String)).
		Discriminator("Kind", "animal")
	b.Entity("Dog", nil).DerivesFrom("Animal", "dog").Property("Bark", metadata.WithMapping(metadata.String))
	b.Entity("Owner", nil).Property("Id", metadata.WithMapping(metadata.Int))
	m, err := b.Build()
	require.NoError(t, err)

	animal, _ := m.Entity("Animal")
	dog, _ := m.Entity("Dog")
	bark, _ := dog.Property("Bark")
	kind, _ := animal.Property("Kind")
	id, _ := animal.Property("Id")

	pet := &shaper.Entity{
		Type:          animal,
		Key:           ids(0),
		Discriminator: 1,
		Properties: []shaper.PropertyBinding{
			{Property: id, Ordinal: 0}, {Property: kind, Ordinal: 1}, {Property: bark, Ordinal: 2},
		},
	}
	owner := bind(m, "Owner", 3)
	owner.Optional = true
	root := &shaper.Object{Fields: []shaper.Field{{Name: "pet", Value: pet}, {Name: "owner", Value: owner}}}

	p, err := shaper.Compile(&shaper.Shape{Root: root}, shaper.Options{})
	require.NoError(t, err)

	results := run(t, p, newRows(
		[]any{int64(1), "dog", "woof", int64(7)},
		[]any{int64(2), "animal", nil, nil},
	))
	require.Len(t, results, 2)

	first := results[0].(map[string]any)
	assert.Equal(t, map[string]any{"Id": 1, "Kind": "dog", "Bark": "woof"}, first["pet"])
	assert.Equal(t, map[string]any{"Id": 7}, first["owner"])

	second := results[1].(map[string]any)
	assert.Equal(t, map[string]any{"Id": 2, "Kind": "animal"}, second["pet"])
	assert.Nil(t, second["owner"])

	p, err = shaper.Compile(&shaper.Shape{Root: pet}, shaper.Options{})
	require.NoError(t, err)
	st := p.NewState(nil)
	cur := newRows([]any{int64(3), "cat", nil})
	cur.i = 0
	_, _, err = st.ProcessRow(context.Background(), cur)
	assert.ErrorIs(t, err, shaper.ErrInvalidType)
}

func TestGroupingShape(t *testing.T) {
	root := &shaper.Grouping{
		Key: &shaper.Scalar{Ordinal: 0, Mapping: metadata.String},
		Elements: &shaper.Collection{
			Element: &shaper.Scalar{Ordinal: 1, Mapping: metadata.Int},
			Outer:   ids(0),
			Self:    ids(1),
		},
	}
	p, err := shaper.Compile(&shaper.Shape{Root: root, Identifier: ids(0)}, shaper.Options{})
	require.NoError(t, err)

	results := run(t, p, newRows(
		[]any{"a", int64(1)},
		[]any{"a", int64(2)},
		[]any{"b", int64(3)},
	))
	require.Len(t, results, 2)
	assert.Equal(t, &shaper.Group{Key: "a", Elements: []any{1, 2}}, results[0])
	assert.Equal(t, &shaper.Group{Key: "b", Elements: []any{3}}, results[1])
}

func TestIdentityResolution(t *testing.T) {
	m := testModel(t)
	post := bind(m, "Post", 0)
	blog := bind(m, "Blog", 3)
	blog.Optional = true
	post.Includes = []shaper.IncludeBinding{{Navigation: navigation(m, "Post", "Blog"), Value: blog}}
	data := [][]any{
		{int64(10), int64(1), "x", int64(1), "a"},
		{int64(11), int64(1), "y", int64(1), "a"},
	}

	for _, resolve := range []bool{false, true} {
		p, err := shaper.Compile(&shaper.Shape{Root: post}, shaper.Options{IdentityResolution: resolve})
		require.NoError(t, err)
		results := run(t, p, newRows(data...))
		require.Len(t, results, 2)
		a, b := results[0].(*postRow).Blog, results[1].(*postRow).Blog
		require.NotNil(t, a)
		assert.Equal(t, "a", a.Name)
		assert.Equal(t, resolve, a == b)
	}
}

func TestIdentityResolutionKeys(t *testing.T) {
	m := testModel(t)
	post := bind(m, "Post", 0)
	post.Key = []shaper.Identifier{{Ordinal: 2, Mapping: metadata.String}, {Ordinal: 3, Mapping: metadata.String}}
	p, err := shaper.Compile(&shaper.Shape{Root: post}, shaper.Options{IdentityResolution: true})
	require.NoError(t, err)

	results := run(t, p, newRows(
		[]any{int64(10), int64(1), "x y", "z"},
		[]any{int64(11), int64(1), "x", "y z"},
		[]any{int64(12), int64(1), "x", []byte("y z")},
	))
	require.Len(t, results, 3)
	first, second, third := results[0].(*postRow), results[1].(*postRow), results[2].(*postRow)
	assert.NotSame(t, first, second)
	assert.Equal(t, 10, first.ID)
	assert.Equal(t, 11, second.ID)
	assert.Same(t, second, third)

	// integer keys compare by value whatever the driver returned
	blog := bind(m, "Blog", 3)
	post = bind(m, "Post", 0)
	post.Includes = []shaper.IncludeBinding{{Navigation: navigation(m, "Post", "Blog"), Value: blog}}
	p, err = shaper.Compile(&shaper.Shape{Root: post}, shaper.Options{IdentityResolution: true})
	require.NoError(t, err)
	results = run(t, p, newRows(
		[]any{int64(10), int64(1), "x", int64(1), "a"},
		[]any{int64(11), int64(1), "y", []byte("1"), "a"},
		[]any{int64(12), int64(2), "z", int64(2), "b"},
	))
	require.Len(t, results, 3)
	assert.Same(t, results[0].(*postRow).Blog, results[1].(*postRow).Blog)
	assert.NotSame(t, results[0].(*postRow).Blog, results[2].(*postRow).Blog)
}

func TestOwnedDocument(t *testing.T) {
	m := testModel(t)
	e, _ := m.Entity("Blog")
	settings, _ := e.OwnedNavigation("Settings")
	blog := bind(m, "Blog", 0)
	blog.Owned = []shaper.OwnedBinding{{Navigation: settings, Ordinal: 2}}

	p, err := shaper.Compile(&shaper.Shape{Root: blog}, shaper.Options{})
	require.NoError(t, err)
	results := run(t, p, newRows(
		[]any{int64(1), "a", []byte(`{"theme":"dark"}`)},
		[]any{int64(2), "b", nil},
	))
	require.Len(t, results, 2)
	require.NotNil(t, results[0].(*blogRow).Settings)
	assert.Equal(t, "dark", results[0].(*blogRow).Settings.Theme)
	assert.Nil(t, results[1].(*blogRow).Settings)

	doc := &shaper.Document{Ordinal: 0, Type: settings.Type}
	p, err = shaper.Compile(&shaper.Shape{Root: doc}, shaper.Options{})
	require.NoError(t, err)
	results = run(t, p, newRows([]any{`{"theme":"light"}`}))
	assert.Equal(t, &settingsDoc{Theme: "light"}, results[0])
}

func TestMaterializationErrors(t *testing.T) {
	m := testModel(t)
	post := bind(m, "Post", 0)
	data := []any{int64(10), int64(1), nil}

	p, err := shaper.Compile(&shaper.Shape{Root: post}, shaper.Options{})
	require.NoError(t, err)
	st := p.NewState(nil)
	cur := newRows(data)
	cur.i = 0
	_, _, err = st.ProcessRow(context.Background(), cur)
	assert.ErrorIs(t, err, shaper.ErrUnexpectedNull)
	var me *shaper.MaterializationError
	assert.False(t, errors.As(err, &me))

	p, err = shaper.Compile(&shaper.Shape{Root: post}, shaper.Options{DetailedErrors: true})
	require.NoError(t, err)
	st = p.NewState(nil)
	_, _, err = st.ProcessRow(context.Background(), cur)
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Post", me.Entity)
	assert.Equal(t, "Title", me.Property)
	assert.Equal(t, 2, me.Ordinal)
	assert.ErrorIs(t, err, shaper.ErrUnexpectedNull)

	scalar := &shaper.Scalar{Ordinal: 0, Mapping: metadata.Int}
	p, err = shaper.Compile(&shaper.Shape{Root: scalar}, shaper.Options{})
	require.NoError(t, err)
	cur = newRows([]any{"not a number"})
	cur.i = 0
	_, _, err = p.NewState(nil).ProcessRow(context.Background(), cur)
	assert.ErrorIs(t, err, shaper.ErrInvalidType)
}

func TestCompileRejectsInvalidShapes(t *testing.T) {
	_, err := shaper.Compile(&shaper.Shape{}, shaper.Options{})
	assert.ErrorIs(t, err, shaper.ErrInvalidShape)

	coll := &shaper.Collection{Element: &shaper.Scalar{Ordinal: 0}}
	_, err = shaper.Compile(&shaper.Shape{Root: coll}, shaper.Options{})
	assert.ErrorIs(t, err, shaper.ErrInvalidShape)

	obj := &shaper.Object{Fields: []shaper.Field{{Name: "xs", Value: coll}}}
	_, err = shaper.Compile(&shaper.Shape{Root: obj}, shaper.Options{})
	assert.ErrorIs(t, err, shaper.ErrInvalidShape, "fanned-out collections need an identifier")

	p, err := shaper.Compile(&shaper.Shape{Root: obj, Identifier: ids(0)}, shaper.Options{})
	require.NoError(t, err)
	assert.False(t, p.Streaming())
}
