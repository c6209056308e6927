package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/chapterd/internal/domain"
)

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
download:
  base_dir: `+dir+`/downloads
  as_archive: true
  max_tries: 5
  retry_delay: 2s
  dequeue_policy: cancel
queue:
  database_path: `+dir+`/library.db
sources:
  mangadex:
    base_url: http://localhost:9999
    requests_per_second: 2
    timeout: 10s
`), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, filepath.Join(dir, "downloads"), config.Download.BaseDir)
	assert.True(t, config.Download.AsArchive)
	assert.Equal(t, 5, config.Download.MaxTries)
	assert.Equal(t, 2*time.Second, config.Download.RetryDelay)
	assert.Equal(t, domain.DequeueCancel, config.Download.DequeuePolicy)
	require.Contains(t, config.Sources, "mangadex")
	assert.Equal(t, "http://localhost:9999", config.Sources["mangadex"].BaseURL)
	assert.Equal(t, 10*time.Second, config.Sources["mangadex"].Timeout)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0644))

	t.Setenv("CHAPTERD_SERVER_PORT", "9100")
	t.Setenv("CHAPTERD_DOWNLOAD_BASE_DIR", dir)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, dir, config.Download.BaseDir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad policy", "download:\n  dequeue_policy: explode\n"},
		{"zero tries", "download:\n  max_tries: 0\n"},
		{"source without url", "sources:\n  broken:\n    requests_per_second: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := domain.DefaultConfig()
	config.Server.Port = 9200
	config.Download.BaseDir = filepath.Join(dir, "downloads")
	config.Download.RetryDelay = 3 * time.Second
	config.Download.DequeuePolicy = domain.DequeueCancel
	config.Sources["gateway"] = domain.SourceConfig{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 1.5, Timeout: time.Second}

	path := filepath.Join(dir, "nested", "config.yaml")
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, loaded.Server.Port)
	assert.Equal(t, config.Download.BaseDir, loaded.Download.BaseDir)
	assert.Equal(t, 3*time.Second, loaded.Download.RetryDelay)
	assert.Equal(t, domain.DequeueCancel, loaded.Download.DequeuePolicy)
	assert.Equal(t, 1.5, loaded.Sources["gateway"].RequestsPerSecond)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x"))
	assert.Equal(t, home+"/y", expandPath("$HOME/y"))
	assert.Equal(t, "/abs", expandPath("/abs"))
}
