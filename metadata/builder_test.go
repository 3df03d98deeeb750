package metadata

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBlog struct {
	ID        int
	Name      string
	Rating    *int
	CreatedAt time.Time `db:"created"`
	Posts     []*testPost
	Settings  *testSettings
}

type testPost struct {
	ID     int
	BlogID int
	Title  string
	Blog   *testBlog
}

type testSettings struct {
	Theme string `json:"theme"`
	Size  int
}

type testFeatured struct {
	testBlog
	Banner string
}

func buildTestModel(t *testing.T) *Model {
	t.Helper()
	b := NewBuilder()
	b.Complex("Settings", testSettings{})
	b.Entity("Blog", testBlog{}).
		Table("blogs").
		Property("Kind", WithMapping(String), Column("kind")).
		Discriminator("Kind", "blog").
		HasMany("Posts", "Post", "BlogID").
		OwnsOne("Settings", "Settings", "settings")
	b.Entity("Post", testPost{}).
		Table("posts").
		BelongsTo("Blog", "Blog", "BlogID")
	b.Entity("Featured", testFeatured{}).DerivesFrom("Blog", "featured")
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestBuilderDiscoversProperties(t *testing.T) {
	m := buildTestModel(t)
	blog, ok := m.Entity("Blog")
	require.True(t, ok)

	assert.Equal(t, "blogs", blog.Table)
	require.Len(t, blog.Keys, 1)
	assert.Equal(t, "ID", blog.Keys[0].Name)

	rating, ok := blog.Property("Rating")
	require.True(t, ok)
	assert.True(t, rating.Nullable)
	assert.Equal(t, "rating", rating.Column)

	created, ok := blog.Property("CreatedAt")
	require.True(t, ok)
	assert.Equal(t, "created", created.Column)
	assert.Same(t, DateTime, created.Mapping)
}

func TestBuilderNavigations(t *testing.T) {
	m := buildTestModel(t)
	blog, _ := m.Entity("Blog")
	post, _ := m.Entity("Post")

	posts, ok := blog.Navigation("Posts")
	require.True(t, ok)
	assert.True(t, posts.IsCollection)
	assert.Equal(t, "Posts", posts.Field)
	assert.Equal(t, "ID", posts.OuterKey[0].Name)
	assert.Equal(t, "BlogID", posts.InnerKey[0].Name)

	owner, ok := post.Navigation("Blog")
	require.True(t, ok)
	assert.False(t, owner.IsCollection)
	assert.True(t, owner.IsRequired)
	assert.Equal(t, "blog_id", owner.OuterKey[0].Column)
}

func TestBuilderHierarchy(t *testing.T) {
	m := buildTestModel(t)
	blog, _ := m.Entity("Blog")
	featured, _ := m.Entity("Featured")

	assert.Same(t, blog, featured.Base)
	assert.Equal(t, "blogs", featured.TableName())
	assert.Equal(t, "featured", featured.DiscriminatorValue)
	require.Len(t, featured.Properties, 1)
	assert.Equal(t, "Banner", featured.Properties[0].Name)
	assert.Len(t, blog.HierarchyProperties(), len(blog.Properties)+1)
	assert.Equal(t, []*EntityType{blog, featured}, blog.Concrete())
}

func TestBuilderOwned(t *testing.T) {
	m := buildTestModel(t)
	blog, _ := m.Entity("Blog")
	settings, ok := blog.OwnedNavigation("Settings")
	require.True(t, ok)
	assert.Equal(t, "settings", settings.Column)
	assert.True(t, settings.Nullable)
	theme, ok := settings.Type.Property("Theme")
	require.True(t, ok)
	assert.Equal(t, "theme", theme.Column)
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder)
	}{
		{"unknown target", func(b *Builder) {
			b.Entity("Post", testPost{}).BelongsTo("Blog", "Missing", "BlogID")
		}},
		{"no key", func(b *Builder) {
			b.Entity("Settings", testSettings{})
		}},
		{"unmapped property", func(b *Builder) {
			b.Entity("Thing", nil).Property("ID")
		}},
		{"duplicate", func(b *Builder) {
			b.Entity("Post", testPost{})
			b.Entity("Post", testPost{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			_, err := b.Build()
			assert.ErrorIs(t, err, ErrInvalidModel)
		})
	}
}

func TestGoFieldName(t *testing.T) {
	typ := reflect.TypeOf(testPost{})
	assert.Equal(t, "Title", goFieldName(typ, "title"))
	assert.Equal(t, "BlogID", goFieldName(typ, "blogId"))
	assert.Equal(t, "", goFieldName(typ, "missing"))
	assert.Equal(t, "blog_id", toSnakeCase("BlogID"))
	assert.Equal(t, "created_at", toSnakeCase("CreatedAt"))
}

func TestTypeMappingCompatible(t *testing.T) {
	assert.True(t, String.Compatible(String.WithStoreType("TEXT")))
	assert.False(t, String.Compatible(String.WithStoreType("varchar(10)")))
	assert.False(t, String.Compatible(nil))
}
