package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/boardsync/internal/domain"
)

func writeSettings(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.SettingsFileName), []byte(content), 0644))
}

func TestLoader_Load_Defaults(t *testing.T) {
	loader := NewLoaderWithGlobalDir(t.TempDir(), t.TempDir())
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.BackendContents, cfg.Remote.Backend)
	assert.Equal(t, domain.DefaultAPIURL, cfg.Remote.APIURL)
	assert.Equal(t, domain.DefaultTimeout, cfg.Remote.Timeout)
	assert.Equal(t, domain.StoreJSON, cfg.Local.Store)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Warnings)
}

func TestLoader_Load_DataDirOnly(t *testing.T) {
	dataDir := t.TempDir()
	writeSettings(t, dataDir, `
[remote]
backend = "git"
git_root = "/srv/boards"
timeout = "3s"

[local]
store = "sqlite"

[log]
level = "debug"

[seed]
roster = "team.yaml"
`)

	cfg, err := NewLoaderWithGlobalDir(dataDir, t.TempDir()).Load()
	require.NoError(t, err)

	assert.Equal(t, domain.BackendGit, cfg.Remote.Backend)
	assert.Equal(t, "/srv/boards", cfg.Remote.GitRoot)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, domain.DefaultAPIURL, cfg.Remote.APIURL)
	assert.Equal(t, domain.StoreSQLite, cfg.Local.Store)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "team.yaml", cfg.Seed.Roster)
}

func TestLoader_Load_DataDirOverridesGlobal(t *testing.T) {
	dataDir := t.TempDir()
	globalDir := t.TempDir()
	writeSettings(t, globalDir, `
[remote]
api_url = "https://ghe.example.com/api/v3"
timeout = "30s"

[log]
level = "warn"
`)
	writeSettings(t, dataDir, `
[log]
level = "error"
`)

	cfg, err := NewLoaderWithGlobalDir(dataDir, globalDir).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.Remote.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoader_Load_UnknownKeysProduceWarnings(t *testing.T) {
	dataDir := t.TempDir()
	writeSettings(t, dataDir, `
[remote]
backend = "ftp"
timeout = "soon"
colour = "blue"

[local]
store = "redis"

[workers]
count = 3
`)

	cfg, err := NewLoaderWithGlobalDir(dataDir, "").Load()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"invalid [remote].timeout: soon",
		"unknown [local].store: redis",
		"unknown [remote].backend: ftp",
		"unknown key in [remote]: colour",
		"unknown section: workers",
	}, cfg.Warnings)
	// Invalid values fall back to defaults.
	assert.Equal(t, domain.BackendContents, cfg.Remote.Backend)
	assert.Equal(t, domain.StoreJSON, cfg.Local.Store)
	assert.Equal(t, domain.DefaultTimeout, cfg.Remote.Timeout)
}

func TestLoader_Load_ParseError(t *testing.T) {
	dataDir := t.TempDir()
	writeSettings(t, dataDir, "[remote\nbackend =")

	_, err := NewLoaderWithGlobalDir(dataDir, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoader_Load_SectionMustBeTable(t *testing.T) {
	dataDir := t.TempDir()
	writeSettings(t, dataDir, `log = "debug"`)

	cfg, err := NewLoaderWithGlobalDir(dataDir, "").Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"[log] must be a table"}, cfg.Warnings)
	assert.Equal(t, "info", cfg.Log.Level)
}
