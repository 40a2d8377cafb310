package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"time"

	"campus/cmd/internal/pgutil"
)

// AuditEvent is one security-relevant auth action. It never carries secrets.
type AuditEvent struct {
	Action     string
	IdentityID *string
	IP         net.IP
	UserAgent  string
	Meta       map[string]any
	At         time.Time
}

// Auditor records auth events. Failures are logged, never surfaced to clients.
type Auditor interface {
	Record(ctx context.Context, ev AuditEvent)
}

// LogAuditor writes events to the structured log.
type LogAuditor struct {
	Log *slog.Logger
}

func (a LogAuditor) Record(_ context.Context, ev AuditEvent) {
	log := a.Log
	if log == nil {
		log = slog.Default()
	}

	attrs := []any{"action", ev.Action}
	if ev.IdentityID != nil {
		attrs = append(attrs, "identity_id", *ev.IdentityID)
	}
	if ev.IP != nil {
		attrs = append(attrs, "ip", ev.IP.String())
	}
	for k, v := range ev.Meta {
		attrs = append(attrs, k, v)
	}
	log.Info("auth.audit", attrs...)
}

// PostgresAuditor appends events to <schema>.audit_log.
type PostgresAuditor struct {
	db     pgutil.DB
	schema string
	log    *slog.Logger
}

func NewPostgresAuditor(db pgutil.DB, log *slog.Logger) *PostgresAuditor {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAuditor{db: db, schema: pgutil.DefaultSchema, log: log}
}

func (a *PostgresAuditor) Record(ctx context.Context, ev AuditEvent) {
	if a == nil || a.db == nil {
		return
	}

	action := strings.TrimSpace(ev.Action)
	if action == "" {
		return
	}

	var ipVal any
	if ev.IP != nil {
		ipVal = ev.IP.String()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := a.db.Exec(ctx,
		`INSERT INTO `+pgutil.Ident(a.schema, "audit_log")+` (
			identity_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		ev.IdentityID, action, at, ipVal, trimOrNil(ev.UserAgent), metaVal,
	)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func (h *Handler) auditLoginFailed(ctx context.Context, identityID *string, ip net.IP, ua, identifier, reason string) {
	h.audit.Record(ctx, AuditEvent{
		Action: "auth.login.failed", IdentityID: identityID, IP: ip, UserAgent: ua, At: h.now(),
		Meta: map[string]any{"identifier": identifier, "reason": reason},
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, identityID string, ip net.IP, ua, identifier string) {
	h.audit.Record(ctx, AuditEvent{
		Action: "auth.login.success", IdentityID: &identityID, IP: ip, UserAgent: ua, At: h.now(),
		Meta: map[string]any{"identifier": identifier},
	})
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua, identifier string, retryAfter time.Duration) {
	h.audit.Record(ctx, AuditEvent{
		Action: "auth.login.rate_limited", IP: ip, UserAgent: ua, At: h.now(),
		Meta: map[string]any{"identifier": identifier, "retry_after_s": int64(retryAfter.Seconds())},
	})
}

func (h *Handler) auditLogout(ctx context.Context, identityID string, ip net.IP, ua string) {
	h.audit.Record(ctx, AuditEvent{Action: "auth.logout", IdentityID: &identityID, IP: ip, UserAgent: ua, At: h.now()})
}

func (h *Handler) auditUserCreated(ctx context.Context, adminID, createdID string, ip net.IP, ua string) {
	h.audit.Record(ctx, AuditEvent{
		Action: "auth.user.created", IdentityID: &adminID, IP: ip, UserAgent: ua, At: h.now(),
		Meta: map[string]any{"created_id": createdID},
	})
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
