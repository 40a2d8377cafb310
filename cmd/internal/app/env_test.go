package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mapLookup(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig(mapLookup(nil))

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.Nil(t, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.IgnoredEnv)
	assert.False(t, cfg.Production())
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg := loadConfig(mapLookup(map[string]string{
		"CAMPUS_ENV":                  " Production ",
		"CAMPUS_DATABASE_URL":         "postgres://db/campus",
		"CAMPUS_DB_MAX_CONNS":         "25",
		"CAMPUS_DB_MIN_CONNS":         "0",
		"CAMPUS_AUTO_MIGRATE":         "true",
		"CAMPUS_HTTP_IDLE_TIMEOUT":    "90s",
		"CAMPUS_CORS_ALLOWED_ORIGINS": "https://a.example, ,https://b.example,",
		"HTTP_ADDR":                   ":1",
	}))

	assert.True(t, cfg.Production())
	assert.Equal(t, "postgres://db/campus", cfg.DatabaseURL)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, int32(0), cfg.DBMinConns)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr, "unprefixed names are not read")
	assert.Empty(t, cfg.IgnoredEnv)
}

func TestLoadConfig_RejectedValuesFallBack(t *testing.T) {
	cfg := loadConfig(mapLookup(map[string]string{
		"CAMPUS_DB_MAX_CONNS":          "-3",
		"CAMPUS_DB_MIN_CONNS":          "many",
		"CAMPUS_METRICS_ENABLED":       "sometimes",
		"CAMPUS_HTTP_READ_TIMEOUT":     "0s",
		"CAMPUS_CORS_MAX_AGE_SECONDS":  "0",
		"CAMPUS_HTTP_MAX_HEADER_BYTES": "   ",
	}))

	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.Equal(t, int32(0), cfg.DBMinConns)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 600, cfg.CORSMaxAgeSeconds)
	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.ElementsMatch(t, []string{
		"CAMPUS_DB_MAX_CONNS",
		"CAMPUS_DB_MIN_CONNS",
		"CAMPUS_METRICS_ENABLED",
		"CAMPUS_HTTP_READ_TIMEOUT",
		"CAMPUS_CORS_MAX_AGE_SECONDS",
	}, cfg.IgnoredEnv, "blank values are defaults, not errors")
}

func TestLoadConfig_ReadsProcessEnv(t *testing.T) {
	t.Setenv("CAMPUS_LOG_FORMAT", "pretty")
	assert.Equal(t, "pretty", LoadConfig().LogFormat)
}
