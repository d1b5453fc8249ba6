package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  schema: Staging
llm:
  model: gpt-4o-mini
  timeout: 30s
aria:
  limit: 10
epicea:
  htmlDir: /data/epicea
scheduler:
  timezone: Europe/Paris
`), 0o644))

	t.Chdir(dir)
	t.Setenv(configPathEnv, path)
	t.Setenv(neonDSNEnv, "postgres://neon/accidents")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(openAIModelEnv, "")
	t.Setenv(databaseSchemaEnv, "")
	t.Setenv(openAIAPIKeyEnv, "sk-test")
	t.Setenv(uuidNamespaceEnv, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	cfg := Load()

	assert.Equal(t, "postgres://neon/accidents", cfg.Database.DSN)
	assert.Equal(t, "Staging", cfg.Database.Schema)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "flex", cfg.LLM.ServiceTier)
	assert.Equal(t, 10, cfg.ARIA.Limit)
	assert.Equal(t, 7, cfg.ARIA.SkipLines)
	assert.Equal(t, "/data/epicea", cfg.EPICEA.HTMLDir)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", cfg.Identity.Namespace)
	assert.Equal(t, "Europe/Paris", cfg.Scheduler.Location().String())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXTRACTION_CACHE_FILE=/tmp/epicea-cache.json\n"), 0o644))

	t.Chdir(dir)
	t.Setenv(configPathEnv, "")
	t.Setenv(cacheFileEnv, "")
	require.NoError(t, os.Unsetenv(cacheFileEnv))

	cfg := Load()
	assert.Equal(t, "/tmp/epicea-cache.json", cfg.Cache.Path)
}

func TestDatabaseDSNWinsOverNeon(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(configPathEnv, "")
	t.Setenv(neonDSNEnv, "postgres://neon")
	t.Setenv(databaseDSNEnv, "postgres://explicit")

	cfg := Load()
	assert.Equal(t, "postgres://explicit", cfg.Database.DSN)
}

func TestLoadYAMLDisablesIncremental(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epicea:\n  incremental: false\n"), 0o644))

	t.Chdir(dir)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	assert.False(t, cfg.EPICEA.IsIncremental())
}

func TestIncrementalDefaultsOn(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(configPathEnv, "")

	cfg := Load()
	assert.True(t, cfg.EPICEA.IsIncremental())
	assert.True(t, EPICEAConfig{}.IsIncremental())
}
