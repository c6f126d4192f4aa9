// ABOUTME: Tests for config loading, overrides, validation and logging setup
// ABOUTME: Uses temp dirs and t.Setenv so nothing touches the real XDG paths
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Backend = BackendHTTP
	cfg.APIURL = "https://admin.example.org"
	cfg.PageSize = 25
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendHTTP, loaded.Backend)
	assert.Equal(t, "https://admin.example.org", loaded.APIURL)
	assert.Equal(t, 25, loaded.PageSize)
}

func TestDurationsAreWrittenAsStrings(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout":"45s","cache_ttl":"2h"}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL)

	require.NoError(t, cfg.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timeout": "45s"`)
	assert.Contains(t, string(data), `"cache_ttl": "2h0m0s"`)
}

func TestDurationsAcceptNanoseconds(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout":3000000000}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL, "missing field keeps the default")
}

func TestBadDurationIsReported(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"timeout":"soon"}`), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestEnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend":"local","page_size":20}`), 0600))

	t.Setenv("DEVICEDROP_BACKEND", "http")
	t.Setenv("DEVICEDROP_API_URL", "http://localhost:8080")
	t.Setenv("DEVICEDROP_PAGE_SIZE", "500")
	t.Setenv("DEVICEDROP_TIMEOUT", "3s")
	t.Setenv("DEVICEDROP_PREFS_SYNC", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendHTTP, cfg.Backend)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 100, cfg.PageSize, "page size is capped")
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.PrefsSync)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEVICEDROP_TOKEN=from-dotenv\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("DEVICEDROP_TOKEN") })

	cfg, err := Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Token)
}

func TestInvalidEnvValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DEVICEDROP_BURST", "lots")

	_, err := Load(filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendHTTP
	assert.Error(t, cfg.Validate())

	cfg.APIURL = "http://localhost"
	assert.NoError(t, cfg.Validate())

	cfg.Backend = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Token = "abcdefgh1234"
	cfg.ClientSecret = "xy"

	r := cfg.Redacted()
	assert.Equal(t, "********1234", r.Token)
	assert.Equal(t, "****", r.ClientSecret)
	assert.Equal(t, "abcdefgh1234", cfg.Token, "original untouched")
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestOpenLogFile(t *testing.T) {
	cfg := Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "logs", "console.log")

	f, err := cfg.OpenLogFile()
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(cfg.LogFile)
	assert.NoError(t, err)
}
