/*
Package config loads the server configuration.

SOURCES (highest precedence first):
  1. Command-line flags (bound by cmd/server)
  2. Environment variables, prefixed COFIDASH_ (analytics.url -> COFIDASH_ANALYTICS_URL)
  3. .env and .env.local in the working directory
  4. Config file (--config, or ./cofidash.yaml when present)
  5. Defaults below
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "COFIDASH"

// Keys
const (
	KeyConfigFile       = "config"
	KeyPort             = "port"
	KeyDB               = "db"
	KeyAnalyticsURL     = "analytics.url"
	KeyAnalyticsTimeout = "analytics.timeout"
	KeyPrepaidTimeout   = "analytics.prepaid_timeout"
	KeyCacheTTL         = "cache.ttl"
	KeyCacheEnabled     = "cache.enabled"
	KeyCacheWarm        = "cache.warm_interval"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyCORSOrigins      = "cors.origins"
)

// Config is the validated server configuration.
type Config struct {
	Port int
	DB   string

	AnalyticsURL     string
	AnalyticsTimeout time.Duration
	PrepaidTimeout   time.Duration

	CacheTTL     time.Duration
	CacheEnabled bool
	CacheWarm    time.Duration // 0 disables the warmer

	LogLevel  string
	LogFormat string // "json" or "console"

	CORSOrigins []string
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDB, "cofidash.db")
	v.SetDefault(KeyAnalyticsURL, "http://localhost:8001")
	v.SetDefault(KeyAnalyticsTimeout, 30*time.Second)
	v.SetDefault(KeyPrepaidTimeout, 5*time.Minute)
	v.SetDefault(KeyCacheTTL, 5*time.Minute)
	v.SetDefault(KeyCacheEnabled, true)
	v.SetDefault(KeyCacheWarm, 10*time.Minute)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyCORSOrigins, []string{"*"})
}

// LoadEnvFiles loads .env then .env.local. Variables already present in
// the environment are not overridden; missing files are ignored.
func LoadEnvFiles(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads every source into v and returns the validated Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("cofidash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Port:             v.GetInt(KeyPort),
		DB:               v.GetString(KeyDB),
		AnalyticsURL:     v.GetString(KeyAnalyticsURL),
		AnalyticsTimeout: v.GetDuration(KeyAnalyticsTimeout),
		PrepaidTimeout:   v.GetDuration(KeyPrepaidTimeout),
		CacheTTL:         v.GetDuration(KeyCacheTTL),
		CacheEnabled:     v.GetBool(KeyCacheEnabled),
		CacheWarm:        v.GetDuration(KeyCacheWarm),
		LogLevel:         strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:        strings.ToLower(v.GetString(KeyLogFormat)),
		CORSOrigins:      splitList(v.GetStringSlice(KeyCORSOrigins)),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %s %d", KeyPort, c.Port)
	}
	if c.DB == "" {
		return fmt.Errorf("%s must not be empty", KeyDB)
	}
	u, err := url.Parse(c.AnalyticsURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q", KeyAnalyticsURL, c.AnalyticsURL)
	}
	if c.AnalyticsTimeout <= 0 || c.PrepaidTimeout <= 0 {
		return fmt.Errorf("analytics timeouts must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%s must be positive", KeyCacheTTL)
	}
	if c.CacheWarm < 0 {
		return fmt.Errorf("%s must not be negative", KeyCacheWarm)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid %s %q (want json or console)", KeyLogFormat, c.LogFormat)
	}
	return nil
}

// NewLogger builds the zap logger described by the config.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// splitList accepts both a YAML list and a comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
