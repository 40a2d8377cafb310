package app

import (
	"net/http"
	"time"

	authapi "campus/cmd/internal/auth/api"
	campusapi "campus/cmd/internal/campus/api"
	"campus/cmd/internal/notify"
)

// NotificationsPath is the student websocket feed.
const NotificationsPath = "/api/v1/student/notifications/ws"

func (a *App) routes(authAPI *authapi.Handler, campusAPI *campusapi.Handler, gw *notify.Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", a.handleReady)
	if a.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}

	authAPI.Register(mux)
	mw := authAPI.Middleware()
	campusAPI.Register(mux, mw)
	mux.Handle("GET "+NotificationsPath, mw.StudentOnly(gw))

	var h http.Handler = WithSecurityHeaders(mux)
	if len(a.cfg.CORSAllowedOrigins) > 0 {
		h = WithCORS(h, a.cfg, a.log)
	}
	h = WithRequestLogging(h, a.log, a.metrics)
	return WithRequestID(h)
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && a.pool == nil {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}

	if a.pool != nil {
		if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			a.log.Info("readyz.db.not_ready", "err", err)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
