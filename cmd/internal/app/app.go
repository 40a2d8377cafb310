// Package app wires the campus server runtime: config, logging, metrics,
// stores, HTTP routes and the student notification gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"campus/cmd/identity"
	"campus/cmd/internal/auth"
	authapi "campus/cmd/internal/auth/api"
	"campus/cmd/internal/campus"
	campusapi "campus/cmd/internal/campus/api"
	"campus/cmd/internal/migrations"
	"campus/cmd/internal/notify"
	"campus/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// App is the campus server runtime. It owns the DB pool, the notification
// hub and the fully wrapped HTTP handler.
type App struct {
	cfg     Config
	log     Logger
	metrics *Metrics

	pool *pgxpool.Pool
	hub  *notify.Hub

	module *auth.Module
	ids    identity.Store
	policy password.Config

	handler http.Handler
}

// New constructs a fully wired App. It fails before anything listens when
// secrets, password parameters, migrations or the database are unusable.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	secrets, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}

	pcfg, err := password.FromEnv()
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	hasher, err := password.New(pcfg, nil)
	if err != nil {
		return nil, oops.Code("HASHER_UNAVAILABLE").Wrap(err)
	}
	module, err := auth.New(secrets, hasher)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: NewMetrics(),
		hub:     notify.NewHub(log),
		module:  module,
		policy:  pcfg,
	}
	a.metrics.SetHasher(string(hasher.Algorithm()))
	log.Info("auth.hasher.selected", "algorithm", hasher.Algorithm())

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}
	a.ids = st.ids

	authAPI, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(cfg.Production()), module, st.ids,
		authapi.WithAuditor(st.audit),
		authapi.WithLoginObserver(a.metrics),
		authapi.WithPasswordPolicy(pcfg),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	campusAPI, err := campusapi.NewHandler(log, st.records, st.ids, campusapi.WithNotifier(a.hub))
	if err != nil {
		a.Close()
		return nil, err
	}

	gw := notify.NewGateway(log, a.hub, notify.LoadGatewayConfigFromEnv())
	a.handler = a.routes(authAPI, campusAPI, gw)
	return a, nil
}

type stores struct {
	ids     identity.Store
	records campus.Store
	audit   authapi.Auditor
}

// openStores picks Postgres when CAMPUS_DATABASE_URL is set and in-memory
// stores otherwise.
func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("db.disabled.inmemory_store")
		return stores{
			ids:     identity.NewMemoryStore(),
			records: campus.NewMemoryStore(),
			audit:   authapi.LogAuditor{Log: a.log},
		}, nil
	}

	if a.cfg.AutoMigrate {
		if err := MigrateUp(a.cfg.DatabaseURL, a.log); err != nil {
			return stores{}, err
		}
	}

	pool, err := NewDBPool(ctx, a.cfg)
	if err != nil {
		return stores{}, err
	}
	a.pool = pool
	a.log.Info("db.enabled.postgres_store", "dsn", redactDSN(a.cfg.DatabaseURL))

	ids, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	records, err := campus.NewPostgresStore(pool, "")
	if err != nil {
		pool.Close()
		return stores{}, err
	}
	return stores{ids: ids, records: records, audit: authapi.NewPostgresAuditor(pool, a.log)}, nil
}

// MigrateUp applies every embedded migration to databaseURL.
func MigrateUp(databaseURL string, log Logger) error {
	m, err := migrations.New(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("db.migrate.close.fail", "err", err)
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info("db.migrate.done", "version", v, "dirty", dirty)
	return nil
}

// Handler is the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// BootstrapAdmin creates an admin account directly in the identity store.
// It is the only way to create the first admin since create_user is admin-only.
func (a *App) BootstrapAdmin(ctx context.Context, name, email, secret string) (identity.Identity, error) {
	name = identity.NormalizeName(name)
	if err := a.policy.Validate(name, secret); err != nil {
		return identity.Identity{}, oops.Code("WEAK_PASSWORD").Wrap(err)
	}

	hash, err := a.module.HashCredential(name, secret)
	if err != nil {
		return identity.Identity{}, oops.Code("HASH_FAILED").Wrap(err)
	}

	u, err := a.ids.CreateIdentity(ctx, identity.CreateIdentityInput{
		Name:         name,
		Email:        email,
		Role:         identity.RoleAdmin,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	switch {
	case identity.IsConflict(err):
		return identity.Identity{}, oops.Code("ADMIN_EXISTS").With("field", identity.ConflictField(err)).Wrap(err)
	case err != nil:
		return identity.Identity{}, oops.Code("ADMIN_CREATE_FAILED").Wrap(err)
	}

	a.log.Info("auth.bootstrap_admin.created", "identity_id", u.ID)
	return u, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}
	srv.RegisterOnShutdown(func() {
		n := a.hub.CloseAll()
		a.log.Info("notify.sessions.closed", "count", n)
	})

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil, "env", a.cfg.Env)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases the DB pool. It is safe to call more than once.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
