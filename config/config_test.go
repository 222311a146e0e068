package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Modou1ngom/cofidash/config"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "cofidash.db", cfg.DB)
	assert.Equal(t, "http://localhost:8001", cfg.AnalyticsURL)
	assert.Equal(t, 30*time.Second, cfg.AnalyticsTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PrepaidTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_Env(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("COFIDASH_PORT", "9090")
	t.Setenv("COFIDASH_ANALYTICS_URL", "http://proxy:8001")
	t.Setenv("COFIDASH_CACHE_TTL", "90s")
	t.Setenv("COFIDASH_CACHE_ENABLED", "false")
	t.Setenv("COFIDASH_CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://proxy:8001", cfg.AnalyticsURL)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "port: 7070\nlog:\n  level: debug\n  format: console\ncache:\n  ttl: 1m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cofidash.yaml"), []byte(yaml), 0o644))

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, time.Minute, cfg.CacheTTL)

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COFIDASH_DB=from-dotenv.db\n"), 0o644))
	t.Setenv("COFIDASH_DB", "")
	os.Unsetenv("COFIDASH_DB")

	config.LoadEnvFiles()
	t.Cleanup(func() { os.Unsetenv("COFIDASH_DB") })

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.DB)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	tests := map[string]map[string]string{
		"port":       {"COFIDASH_PORT": "70000"},
		"url":        {"COFIDASH_ANALYTICS_URL": "not a url"},
		"log level":  {"COFIDASH_LOG_LEVEL": "loud"},
		"log format": {"COFIDASH_LOG_FORMAT": "xml"},
		"cache ttl":  {"COFIDASH_CACHE_TTL": "0s"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := config.Load(viper.New())
			assert.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
