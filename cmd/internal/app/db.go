package app

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

const (
	dbConnectTimeout   = 3 * time.Second
	dbConnMaxLifetime  = 30 * time.Minute
	dbConnMaxIdleTime  = 5 * time.Minute
	dbApplicationName  = "campus"
	dbHealthCheckEvery = time.Minute
)

// NewDBPool opens the campus pool and checks that a connection can be
// acquired. Migrations run separately (campus migrate up, or
// CAMPUS_AUTO_MIGRATE).
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, oops.Code("DB_UNAVAILABLE").With("dsn", redactDSN(cfg.DatabaseURL)).Wrap(err)
	}
	if err := PingDB(ctx, pool, dbConnectTimeout); err != nil {
		pool.Close()
		return nil, oops.Code("DB_UNAVAILABLE").With("dsn", redactDSN(cfg.DatabaseURL)).Wrap(err)
	}
	return pool, nil
}

// poolConfig parses CAMPUS_DATABASE_URL and sizes the pool from
// CAMPUS_DB_MAX_CONNS / CAMPUS_DB_MIN_CONNS. MinConns never exceeds MaxConns.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("CAMPUS_DATABASE_URL is empty")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		// pgconn echoes the DSN on some parse failures.
		return nil, oops.Code("CONFIG_INVALID").With("dsn", redactDSN(dsn)).
			Errorf("parse CAMPUS_DATABASE_URL: %s", redactDSN(err.Error()))
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	if pcfg.MinConns > pcfg.MaxConns {
		pcfg.MinConns = pcfg.MaxConns
	}
	pcfg.MaxConnLifetime = dbConnMaxLifetime
	pcfg.MaxConnIdleTime = dbConnMaxIdleTime
	pcfg.HealthCheckPeriod = dbHealthCheckEvery

	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = dbApplicationName
	}
	return pcfg, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

var dsnPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// redactDSN hides credentials in URL and keyword/value DSNs.
func redactDSN(dsn string) string {
	dsn = dsnPassword.ReplaceAllString(dsn, "${1}***")
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
