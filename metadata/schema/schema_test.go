package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relquery/metadata"
)

const blogSchema = `
datasource db {
  provider = "sqlite"
  url      = "file:dev.db"
}

/// A blog
model Blog {
  id        Int      @id @default(autoincrement())
  name      String   @db.VarChar(200)
  rating    Int?
  createdAt DateTime @default(now()) @map("created_at")
  status    Status   @default(DRAFT)
  posts     Post[]
  address   Address?

  @@map("blogs")
}

model Post {
  id     Int    @id
  title  String
  blogId Int    @map("blog_id")
  blog   Blog   @relation(fields: [blogId], references: [id])
  tags   Tag[]
}

model Tag {
  postId Int
  label  String
  post   Post   @relation(fields: [postId], references: [id], onDelete: Cascade)

  @@id([postId, label])
}

type Address {
  city String
  zip  String? @map("postal")
}

enum Status {
  DRAFT
  PUBLISHED
}
`

type Blog struct {
	ID        int
	Name      string
	Rating    *int
	CreatedAt time.Time
	Status    string
	Legacy    string
}

func TestLoadSchema(t *testing.T) {
	s, err := Load("schema.prisma", blogSchema, map[string]any{"Blog": Blog{}})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Provider)
	assert.Equal(t, "file:dev.db", s.URL)

	blog, ok := s.Model.Entity("Blog")
	require.True(t, ok)
	assert.Equal(t, "blogs", blog.Table)
	require.Len(t, blog.Keys, 1)
	assert.Equal(t, "id", blog.Keys[0].Name)
	assert.Equal(t, "ID", blog.Keys[0].Field)

	_, ok = blog.Property("Legacy")
	assert.False(t, ok, "struct fields missing from the schema are dropped")

	name, _ := blog.Property("name")
	assert.Equal(t, "varchar(200)", name.Mapping.StoreType)
	created, _ := blog.Property("createdAt")
	assert.Equal(t, "created_at", created.Column)
	assert.Equal(t, "CreatedAt", created.Field)
	rating, _ := blog.Property("rating")
	assert.True(t, rating.Nullable)
	status, _ := blog.Property("status")
	assert.Same(t, metadata.String, status.Mapping)

	posts, ok := blog.Navigation("posts")
	require.True(t, ok)
	assert.True(t, posts.IsCollection)
	assert.Equal(t, "blog_id", posts.InnerKey[0].Column)

	addr, ok := blog.OwnedNavigation("address")
	require.True(t, ok)
	zip, ok := addr.Type.Property("zip")
	require.True(t, ok)
	assert.Equal(t, "postal", zip.Column)
	assert.True(t, zip.Nullable)
}

func TestLoadSchemaCompositeKeyAndDynamicType(t *testing.T) {
	s, err := Load("schema.prisma", blogSchema, nil)
	require.NoError(t, err)

	tag, ok := s.Model.Entity("Tag")
	require.True(t, ok)
	assert.Nil(t, tag.GoType)
	require.Len(t, tag.Keys, 2)
	assert.Equal(t, "postId", tag.Keys[0].Name)
	assert.Equal(t, "label", tag.Keys[1].Name)

	post, _ := s.Model.Entity("Post")
	tags, ok := post.Navigation("tags")
	require.True(t, ok)
	assert.Equal(t, "postId", tags.InnerKey[0].Name)
	blogNav, _ := post.Navigation("blog")
	assert.True(t, blogNav.IsRequired)
}

func TestLoadSchemaErrors(t *testing.T) {
	_, err := Load("bad.prisma", "model {", nil)
	assert.Error(t, err)

	_, err = Load("bad.prisma", "model A {\n id Int @id\n tags String[]\n}", nil)
	assert.Error(t, err)
}
