// Package api serves the admin, faculty and student endpoints over campus records.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"campus/cmd/identity"
	"campus/cmd/internal/auth"
	"campus/cmd/internal/campus"
	"campus/cmd/internal/httpx"
)

// Notifier receives best-effort events for an identity.
type Notifier interface {
	Notify(identityID, typ string, data any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, any) {}

// Handler wires campus endpoints to the records and identity stores.
type Handler struct {
	log      *slog.Logger
	store    campus.Store
	ids      identity.Store
	notifier Notifier
	maxBody  int64
	now      func() time.Time
}

type Option func(*Handler)

// WithNotifier publishes attendance, result and fee events.
func WithNotifier(n Notifier) Option {
	return func(h *Handler) {
		if n != nil {
			h.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func NewHandler(log *slog.Logger, store campus.Store, ids identity.Store, opts ...Option) (*Handler, error) {
	if store == nil || ids == nil {
		return nil, errors.New("campus api: nil store")
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:      log,
		store:    store,
		ids:      ids,
		notifier: nopNotifier{},
		maxBody:  httpx.DefaultMaxBodyBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register mounts every route behind its role gate.
func (h *Handler) Register(mux *http.ServeMux, mw *auth.Middleware) {
	if h == nil || mux == nil || mw == nil {
		return
	}

	admin := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, mw.AdminOnly(fn)) }
	admin("POST /api/v1/admin/courses", h.handleCreateCourse)
	admin("GET /api/v1/admin/courses", h.handleListCourses)
	admin("DELETE /api/v1/admin/courses/{id}", h.handleDeleteCourse)
	admin("POST /api/v1/admin/courses/{id}/enrollments", h.handleEnroll)
	admin("POST /api/v1/admin/fees", h.handleCreateFee)
	admin("GET /api/v1/admin/fees", h.handleListFees)
	admin("POST /api/v1/admin/fees/{id}/pay", h.handlePayFee)

	faculty := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, mw.FacultyOnly(fn)) }
	faculty("GET /api/v1/faculty/courses", h.handleFacultyCourses)
	faculty("GET /api/v1/faculty/courses/{id}/students", h.handleCourseStudents)
	faculty("GET /api/v1/faculty/courses/{id}/attendance", h.handleCourseAttendance)
	faculty("GET /api/v1/faculty/courses/{id}/results", h.handleCourseResults)
	faculty("POST /api/v1/faculty/attendance", h.handleMarkAttendance)
	faculty("POST /api/v1/faculty/results", h.handlePublishResult)
	faculty("PUT /api/v1/faculty/results/{id}", h.handleUpdateResult)

	student := func(pattern string, fn http.HandlerFunc) { mux.Handle(pattern, mw.StudentOnly(fn)) }
	student("GET /api/v1/student/courses", h.handleStudentCourses)
	student("GET /api/v1/student/attendance", h.handleStudentAttendance)
	student("GET /api/v1/student/fees", h.handleStudentFees)
	student("GET /api/v1/student/results", h.handleStudentResults)
}

// ---- helpers ----

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, h.maxBody, dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return false
	}
	return true
}

// writeStoreError maps campus error kinds to statuses; anything else is a 500.
func (h *Handler) writeStoreError(w http.ResponseWriter, event string, err error) {
	switch {
	case campus.IsInvalidInput(err):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", campus.Message(err))
	case campus.IsNotFound(err):
		httpx.WriteError(w, http.StatusNotFound, "not_found", campus.Message(err))
	case campus.IsConflict(err):
		httpx.WriteError(w, http.StatusConflict, "conflict", campus.Message(err))
	default:
		h.log.Error(event, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// requireRole loads identity id and checks its role. On failure it writes a
// 400 naming field and returns false.
func (h *Handler) requireRole(ctx context.Context, w http.ResponseWriter, id string, role identity.Role, field string) (identity.Identity, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", field+" is required")
		return identity.Identity{}, false
	}
	who, err := h.ids.GetByID(ctx, id)
	if err != nil {
		if identity.IsNotFound(err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", field+" does not exist")
			return identity.Identity{}, false
		}
		h.log.Error("campus.identity.lookup.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return identity.Identity{}, false
	}
	if who.Role != role {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", field+" must reference a "+string(role))
		return identity.Identity{}, false
	}
	return who, true
}

// ownCourse loads courseID and admits only the faculty member who teaches it.
func (h *Handler) ownCourse(w http.ResponseWriter, r *http.Request, courseID string) (campus.Course, bool) {
	c, err := h.store.GetCourse(r.Context(), courseID)
	if err != nil {
		h.writeStoreError(w, "campus.course.get.fail", err)
		return campus.Course{}, false
	}
	if c.FacultyID != principal(r).ID {
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "not the faculty of this course")
		return campus.Course{}, false
	}
	return c, true
}
