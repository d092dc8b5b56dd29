package properties

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("ROOT_PATH", "")
	chdir(t, t.TempDir())
	require.NoError(t, Init(""))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.RootPath)
	assert.Equal(t, filepath.Join("data", "raw"), cfg.DataRawDir)
	assert.Equal(t, filepath.Join("data", "processed"), cfg.DataProcessedDir)
	assert.Equal(t, "mapas", cfg.MapsDir)
	assert.Equal(t, "tabelas", cfg.TablesDir)
	assert.Equal(t, filepath.Join("data", "cache"), cfg.CacheDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultServeAddr, cfg.ServeAddr)
	assert.Equal(t, sentinel.DefaultAPIURL, cfg.Sentinel.APIURL)
	assert.Equal(t, sentinel.DefaultClientID, cfg.Sentinel.ClientID)
	assert.Equal(t, 60*time.Second, cfg.Sentinel.Timeout)
	assert.False(t, cfg.HasSentinelCredentials())
}

func TestLoadEnvOverrides(t *testing.T) {
	resetViper(t)
	chdir(t, t.TempDir())
	t.Setenv("ROOT_PATH", "/srv/canasat")
	t.Setenv("CANASAT_MAPS_DIR", "/var/www/maps")
	t.Setenv("CANASAT_SENTINEL_TIMEOUT", "90s")
	t.Setenv("SENTINEL_USERNAME", "ana")
	t.Setenv("SENTINEL_PASSWORD", "secret")
	t.Setenv("DISCORD_ERROR_NOTIFICATION_URL", "https://discord.test/err")
	require.NoError(t, Init(""))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/canasat", cfg.RootPath)
	assert.Equal(t, "/srv/canasat", RootPath())
	assert.Equal(t, "/var/www/maps", cfg.MapsDir)
	assert.Equal(t, filepath.Join("/srv/canasat", "data", "raw"), cfg.DataRawDir)
	assert.Equal(t, 90*time.Second, cfg.Sentinel.Timeout)
	assert.True(t, cfg.HasSentinelCredentials())
	assert.Equal(t, "https://discord.test/err", cfg.Discord.ErrorURL)

	cc := cfg.CatalogConfig()
	assert.Equal(t, "ana", cc.Username)
	assert.Equal(t, 90*time.Second, cc.Timeout)
}

func TestInitReadsConfigFile(t *testing.T) {
	resetViper(t)
	t.Setenv("ROOT_PATH", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "canasat.yaml")
	body := "root_path: /data\nlog_level: debug\nsentinel:\n  client_id: other\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, Init(path))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.RootPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "other", cfg.Sentinel.ClientID)
	assert.Equal(t, filepath.Join("/data", "mapas"), cfg.MapsDir)
}

func TestInitRejectsBrokenConfigFile(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "canasat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root_path: [unclosed"), 0o644))
	assert.Error(t, Init(path))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CANASAT_TEST_ENV_FILE=loaded\n"), 0o644))
	t.Setenv("CANASAT_TEST_ENV_FILE", "")
	require.NoError(t, os.Unsetenv("CANASAT_TEST_ENV_FILE"))

	LoadEnv()
	assert.Equal(t, "loaded", os.Getenv("CANASAT_TEST_ENV_FILE"))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
