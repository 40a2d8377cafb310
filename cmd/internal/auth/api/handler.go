// Package api serves the login, logout, me and user-administration endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"campus/cmd/identity"
	"campus/cmd/internal/auth"
	"campus/cmd/internal/httpx"
	"campus/cmd/security/password"

	"golang.org/x/sync/semaphore"
)

// Login outcomes reported to the LoginObserver.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid_credentials"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// LoginObserver receives one outcome per login attempt.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveLogin(string) {}

// Handler wires HTTP auth endpoints to the auth Module and identity store.
type Handler struct {
	log *slog.Logger
	cfg Config

	module   *auth.Module
	mw       *auth.Middleware
	ids      identity.Store
	policy   password.Config
	audit    Auditor
	observer LoginObserver
	throttle *loginThrottle
	hashSem  *semaphore.Weighted
	now      func() time.Time

	attempts  atomic.Uint64
	dummyHash string
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithAuditor overrides the default log auditor.
func WithAuditor(a Auditor) HandlerOption {
	return func(h *Handler) {
		if a != nil {
			h.audit = a
		}
	}
}

// WithLoginObserver reports login outcomes, typically to metrics.
func WithLoginObserver(o LoginObserver) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithPasswordPolicy sets the policy checked at account creation.
func WithPasswordPolicy(cfg password.Config) HandlerOption {
	return func(h *Handler) { h.policy = cfg }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, module *auth.Module, ids identity.Store, opts ...HandlerOption) (*Handler, error) {
	if module == nil {
		return nil, errors.New("auth api: nil module")
	}
	if ids == nil {
		return nil, errors.New("auth api: nil identity store")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxConcurrentHashes <= 0 {
		cfg.MaxConcurrentHashes = 1
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		module:   module,
		mw:       auth.NewMiddleware(module, cfg.CookieName),
		ids:      ids,
		policy:   password.DefaultConfig(),
		observer: nopObserver{},
		throttle: newLoginThrottle(cfg),
		hashSem:  semaphore.NewWeighted(int64(cfg.MaxConcurrentHashes)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	h.audit = LogAuditor{Log: log}

	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	// Dummy hash for timing-resistant login checks.
	hash, err := module.HashCredential("dummy", "dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}
	h.dummyHash = hash

	return h, nil
}

// Middleware returns the role-gating middleware bound to this handler's cookie.
func (h *Handler) Middleware() *auth.Middleware { return h.mw }

// Register wires auth routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.Handle("POST /logout", h.mw.Authenticate(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET /me", h.mw.RequireAny(http.HandlerFunc(h.handleMe)))

	createUser := h.mw.AdminOnly(http.HandlerFunc(h.handleCreateUser))
	mux.Handle("POST /api/v1/admin/create_user", createUser)
	mux.Handle("POST /admin/create_user", createUser)
	mux.Handle("GET /api/v1/admin/users", h.mw.AdminOnly(http.HandlerFunc(h.handleListUsers)))
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email, roll, secret, ok := normalizeLoginRequest(req)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email or roll_number, and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())
	identifier := loginIdentifier(email, roll)
	ipKey := ""
	if ip != nil {
		ipKey = ip.String()
	}

	if h.attempts.Add(1)%256 == 0 {
		h.throttle.sweep(now)
	}

	if blocked, retryAfter := h.throttle.check(ipKey, identifier, now); blocked {
		h.auditLoginRateLimited(ctx, ip, ua, identifier, retryAfter)
		h.observer.ObserveLogin(OutcomeRateLimited)
		writeRateLimited(w, retryAfter)
		return
	}

	who, err := h.lookupForLogin(ctx, email, roll)
	if err != nil && !identity.IsNotFound(err) {
		h.log.Error("auth.login.lookup.fail", "err", err)
		h.observer.ObserveLogin(OutcomeError)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	var verified bool
	if err == nil {
		verified, err = h.verify(ctx, who.Name, secret, who.PasswordHash)
	} else {
		// Timing resistance: perform a dummy verify when the identity is missing.
		_, err = h.verify(ctx, "dummy", secret, h.dummyHash)
		who = identity.Identity{}
	}
	if err != nil {
		h.observer.ObserveLogin(OutcomeError)
		httpx.WriteError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	}

	if !verified {
		h.throttle.fail(ipKey, identifier, now)
		var idPtr *string
		reason := "not_found"
		if who.ID != "" {
			idPtr, reason = &who.ID, "bad_password"
		}
		h.auditLoginFailed(ctx, idPtr, ip, ua, identifier, reason)
		h.observer.ObserveLogin(OutcomeInvalid)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	raw, exp, err := h.module.IssueToken(who.ID, who.Role)
	if err != nil {
		h.log.Error("auth.login.issue_token.fail", "err", err, "identity_id", who.ID)
		h.observer.ObserveLogin(OutcomeError)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.throttle.succeed(identifier)
	h.auditLoginSuccess(ctx, who.ID, ip, ua, identifier)
	h.observer.ObserveLogin(OutcomeSuccess)
	h.log.Info("auth.login.success", "identity_id", who.ID, "role", string(who.Role))

	h.setSessionCookie(w, raw, exp)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{User: toUserResponse(who), ExpiresAt: exp})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// No server-side session exists; the token stays valid until expiry.
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		h.auditLogout(r.Context(), p.ID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	}
	h.expireSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	who, err := h.ids.GetByID(r.Context(), p.ID)
	if err != nil {
		if identity.IsNotFound(err) {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{User: toUserResponse(who)})
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	role, err := identity.ParseRole(req.Role)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "role must be student, faculty or admin")
		return
	}

	name := identity.NormalizeName(req.Name)
	if name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if err := h.policy.Validate(name, req.Password); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "weak_password", passwordPolicyMessage(err))
		return
	}

	hash, err := h.hash(r.Context(), name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentialInput):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "name and password are required")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			httpx.WriteError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		default:
			h.log.Error("auth.create_user.hash.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "hash_failed", "Password hashing failed")
		}
		return
	}

	created, err := h.ids.CreateIdentity(r.Context(), identity.CreateIdentityInput{
		Name:         name,
		Email:        req.Email,
		RollNumber:   req.RollNumber,
		Role:         role,
		PasswordHash: hash,
		Now:          h.now(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			field := identity.ConflictField(err)
			if field == "" || field == "unique" {
				field = "identity"
			}
			httpx.WriteError(w, http.StatusConflict, "conflict", field+" already exists")
		case identity.IsInvalidInput(err):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		default:
			h.log.Error("auth.create_user.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	admin, _ := auth.PrincipalFrom(r.Context())
	h.auditUserCreated(r.Context(), admin.ID, created.ID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	h.log.Info("auth.user.created", "identity_id", created.ID, "role", string(created.Role), "by", admin.ID)

	httpx.WriteJSON(w, http.StatusCreated, createUserResponse{User: toUserResponse(created)})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	var role identity.Role
	if q := strings.TrimSpace(r.URL.Query().Get("role")); q != "" {
		parsed, err := identity.ParseRole(q)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid role filter")
			return
		}
		role = parsed
	}

	list, err := h.ids.List(r.Context(), role)
	if err != nil {
		h.log.Error("auth.list_users.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]userResponse, 0, len(list))
	for _, it := range list {
		out = append(out, toUserResponse(it))
	}
	httpx.WriteJSON(w, http.StatusOK, listUsersResponse{Users: out})
}

// ---- helpers ----

// hash and verify bound concurrent CPU-heavy calls; waiting honors ctx.
func (h *Handler) hash(ctx context.Context, name, secret string) (string, error) {
	if err := h.hashSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.hashSem.Release(1)
	return h.module.HashCredential(name, secret)
}

func (h *Handler) verify(ctx context.Context, name, secret, stored string) (bool, error) {
	if err := h.hashSem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.hashSem.Release(1)
	return h.module.VerifyCredential(name, secret, stored), nil
}

func (h *Handler) lookupForLogin(ctx context.Context, email, roll *string) (identity.Identity, error) {
	if email != nil {
		return h.ids.GetByEmail(ctx, *email)
	}
	return h.ids.GetByRollNumber(ctx, *roll)
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// normalizeLoginRequest requires exactly one of email, roll_number or id, and
// one of password or pass.
func normalizeLoginRequest(req loginRequest) (email, roll *string, secret string, ok bool) {
	email = trimPtr(req.Email)
	roll = trimPtr(req.RollNumber)
	if id := trimPtr(req.ID); id != nil {
		if email != nil || roll != nil {
			return nil, nil, "", false
		}
		if strings.Contains(*id, "@") {
			email = id
		} else {
			roll = id
		}
	}

	secret = req.Password
	if req.Pass != "" {
		if secret != "" {
			return nil, nil, "", false
		}
		secret = req.Pass
	}
	if secret == "" || (email == nil) == (roll == nil) {
		return nil, nil, "", false
	}
	return email, roll, secret, true
}

func loginIdentifier(email, roll *string) string {
	if email != nil {
		return "email:" + identity.NormalizeEmail(*email)
	}
	if roll != nil {
		return "roll:" + identity.NormalizeRollNumber(*roll)
	}
	return ""
}

func passwordPolicyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "password too short"
	case errors.Is(err, password.ErrPasswordTooLong):
		return "password too long"
	default:
		return "password too weak"
	}
}

func invalidMessage(err error) string {
	var op identity.OpError
	if errors.As(err, &op) && op.Msg != "" {
		return op.Msg
	}
	return "invalid input"
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
