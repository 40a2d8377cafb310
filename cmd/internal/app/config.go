package app

import (
	"os"
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | pretty

	// Env is "development" or "production". Production forces Secure cookies
	// and requires a database.
	Env string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	AutoMigrate bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	MetricsEnabled bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// IgnoredEnv names variables whose values could not be parsed.
	IgnoredEnv []string
}

// Production reports whether the process runs with production policy.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// LoadConfig loads Config from CAMPUS_* environment variables with defaults.
func LoadConfig() Config { return loadConfig(os.LookupEnv) }

func loadConfig(lookup func(string) (string, bool)) Config {
	e := newEnvReader(lookup)
	cfg := Config{
		HTTPAddr:  e.str("HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),
		Env:       e.str("ENV", "development"),

		ReadHeaderTimeout: e.duration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       e.duration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      e.duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       e.duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: e.positive("HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: e.str("DATABASE_URL", ""),
		DBMaxConns:  e.conns("DB_MAX_CONNS", 10),
		DBMinConns:  e.conns("DB_MIN_CONNS", 0),
		AutoMigrate: e.flag("AUTO_MIGRATE", false),

		ReadinessRequireDB: e.flag("READINESS_REQUIRE_DB", false),

		MetricsEnabled: e.flag("METRICS_ENABLED", true),

		CORSAllowedOrigins:   e.list("CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: e.flag("CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    e.positive("CORS_MAX_AGE_SECONDS", 600),
	}
	cfg.IgnoredEnv = e.ignored
	return cfg
}
