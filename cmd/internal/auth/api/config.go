package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"campus/cmd/internal/auth"
)

// Config controls login/session HTTP behavior and security defaults.
type Config struct {
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	TrustProxy   bool
	MaxBodyBytes int64

	// Per client IP sliding window over failed logins.
	LoginIPMax    int
	LoginIPWindow time.Duration

	// Per login identifier progressive lockout.
	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration

	// MaxConcurrentHashes bounds CPU-heavy hash/verify calls across requests.
	MaxConcurrentHashes int
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		CookieName:             auth.DefaultCookieName,
		CookiePath:             "/",
		CookieSameSite:         http.SameSiteStrictMode,
		MaxBodyBytes:           1 << 20, // 1 MiB
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
		MaxConcurrentHashes:    4,
	}
}

// LoadConfigFromEnv loads auth HTTP config with safe defaults. production
// forces Secure cookies regardless of CAMPUS_COOKIE_SECURE.
func LoadConfigFromEnv(production bool) Config {
	def := DefaultConfig()

	cfg := Config{
		CookieName:             envString("CAMPUS_COOKIE_NAME", def.CookieName),
		CookiePath:             envString("CAMPUS_COOKIE_PATH", def.CookiePath),
		CookieDomain:           strings.TrimSpace(os.Getenv("CAMPUS_COOKIE_DOMAIN")),
		CookieSecure:           envBool("CAMPUS_COOKIE_SECURE", false) || production,
		CookieSameSite:         def.CookieSameSite,
		TrustProxy:             envBool("CAMPUS_TRUST_PROXY", false),
		MaxBodyBytes:           envInt64("CAMPUS_MAX_BODY_BYTES", def.MaxBodyBytes),
		LoginIPMax:             envInt("CAMPUS_LOGIN_IP_MAX", def.LoginIPMax),
		LoginIPWindow:          envDuration("CAMPUS_LOGIN_IP_WINDOW", def.LoginIPWindow),
		LockoutShortThreshold:  envInt("CAMPUS_LOGIN_LOCKOUT_SHORT_THRESHOLD", def.LockoutShortThreshold),
		LockoutShortDuration:   envDuration("CAMPUS_LOGIN_LOCKOUT_SHORT_DURATION", def.LockoutShortDuration),
		LockoutLongThreshold:   envInt("CAMPUS_LOGIN_LOCKOUT_LONG_THRESHOLD", def.LockoutLongThreshold),
		LockoutLongDuration:    envDuration("CAMPUS_LOGIN_LOCKOUT_LONG_DURATION", def.LockoutLongDuration),
		LockoutSevereThreshold: envInt("CAMPUS_LOGIN_LOCKOUT_SEVERE_THRESHOLD", def.LockoutSevereThreshold),
		LockoutSevereDuration:  envDuration("CAMPUS_LOGIN_LOCKOUT_SEVERE_DURATION", def.LockoutSevereDuration),
		MaxConcurrentHashes:    envInt("CAMPUS_MAX_CONCURRENT_HASHES", def.MaxConcurrentHashes),
	}

	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
