package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("CONCURRENCY", "")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 5, cfg.DetailConcurrency)
	assert.Equal(t, 5, cfg.ScrollStableIters)
	assert.Equal(t, 30, cfg.LoadMoreMaxClicks)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/f.db")
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("DELAY_MS", "250")
	t.Setenv("HEADLESS", "false")
	t.Setenv("MAX_PAGES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 0, cfg.MaxPages, "invalid ints fall back to the default")
	assert.False(t, cfg.Headless)
	assert.Equal(t, int64(250), cfg.Delay().Milliseconds())
	assert.True(t, strings.HasPrefix(cfg.DSN(), "file:/tmp/f.db"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Load()
	cfg.DBDriver = "oracle"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBDriver")

	cfg = Load()
	cfg.BatchSize = 0
	require.Error(t, cfg.Validate())
}

func TestDSNPrefersDatabaseURL(t *testing.T) {
	cfg := &Config{DBDriver: "postgres", DatabaseURL: "postgres://u:p@db/festivals"}
	assert.Equal(t, "postgres://u:p@db/festivals", cfg.DSN())

	cfg = &Config{DBDriver: "mysql", PostgresUser: "u", PostgresPassword: "p",
		PostgresHost: "db", PostgresPort: "3306", PostgresDB: "festivals"}
	assert.Equal(t, "u:p@tcp(db:3306)/festivals?parseTime=true&charset=utf8mb4", cfg.DSN())
}

func TestLoadSourcesFile_NoFile(t *testing.T) {
	file, err := LoadSourcesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, file, "Should return nil when the catalog doesn't exist")
}

func TestLoadSourcesFile_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `sources:
  - name: festivalinfo
    max_pages: 4
  - name: festivalsfr
    enabled: false
    base_url: "https://mirror.example.com/agenda"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	file, err := LoadSourcesFile(path)
	require.NoError(t, err)
	require.NotNil(t, file)

	info, ok := file.Lookup("festivalinfo")
	require.True(t, ok)
	assert.True(t, info.IsEnabled())
	assert.Equal(t, 4, info.MaxPages)

	fr, ok := file.Lookup("festivalsfr")
	require.True(t, ok)
	assert.False(t, fr.IsEnabled())
	assert.Equal(t, "https://mirror.example.com/agenda", fr.BaseURL)

	_, ok = file.Lookup("unknown")
	assert.False(t, ok)
}

func TestLoadSourcesFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sources:\n  name: not-a-list\n"), 0o600))
	_, err := LoadSourcesFile(bad)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("sources:\n  - name: a\n  - name: a\n"), 0o600))
	_, err = LoadSourcesFile(dup)
	assert.ErrorContains(t, err, "duplicate")
}
