package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFs(t *testing.T, files map[string]string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	old := AppFs
	AppFs = fs
	t.Cleanup(func() { AppFs = old })
}

func TestDefaults(t *testing.T) {
	withFs(t, nil)
	t.Setenv("DATABASE_URL", "postgres://localhost/db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "schema.prisma", cfg.SchemaPath)
	assert.Equal(t, "relational", cfg.NullSemantics)
	assert.Equal(t, "postgres://localhost/db", cfg.DatabaseURL)
	assert.False(t, cfg.SplitQuery)
}

func TestConfigFileAndEnv(t *testing.T) {
	withFs(t, map[string]string{
		".relquery.yaml": "schema_path: db/schema.prisma\nsplit_query: true\nnull_semantics: emulated\n",
		".env":           "RELQUERY_TEST_DSN=from-env\n",
		".env.local":     "RELQUERY_TEST_DSN=from-local\n",
	})
	t.Setenv("RELQUERY_SERVER_VERSION", "16.0")
	t.Setenv("RELQUERY_TEST_DSN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "db/schema.prisma", cfg.SchemaPath)
	assert.True(t, cfg.SplitQuery)
	assert.Equal(t, "emulated", cfg.NullSemantics)
	assert.Equal(t, "16.0", cfg.ServerVersion)
}

func TestEnvFilePriority(t *testing.T) {
	withFs(t, map[string]string{
		".env":       "RELQUERY_DATABASE_URL=file:env.db\n",
		".env.local": "RELQUERY_DATABASE_URL=file:local.db\n",
	})
	t.Setenv("RELQUERY_DATABASE_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "file:local.db", cfg.DatabaseURL)
}
