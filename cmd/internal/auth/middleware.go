package auth

import (
	"net/http"
	"strings"

	"campus/cmd/identity"
	"campus/cmd/internal/httpx"
)

// DefaultCookieName is the session cookie.
const DefaultCookieName = "campus_session"

// Middleware decodes the session token on each request and gates routes by role.
type Middleware struct {
	module     *Module
	cookieName string
}

// NewMiddleware returns a Middleware reading cookieName (DefaultCookieName if empty).
func NewMiddleware(m *Module, cookieName string) *Middleware {
	if strings.TrimSpace(cookieName) == "" {
		cookieName = DefaultCookieName
	}
	return &Middleware{module: m, cookieName: cookieName}
}

// Authenticate stores the principal in the request context when a valid
// token is presented. It never rejects; gating is RequireRole's job.
func (mw *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			if p, ok := mw.principal(r); ok {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only principals with role: 401 without a valid token,
// 403 for any other role.
func (mw *Middleware) RequireRole(role identity.Role, next http.Handler) http.Handler {
	return mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		if p.Role != role {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireAny admits any authenticated principal.
func (mw *Middleware) RequireAny(next http.Handler) http.Handler {
	return mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (mw *Middleware) StudentOnly(next http.Handler) http.Handler {
	return mw.RequireRole(identity.RoleStudent, next)
}

func (mw *Middleware) FacultyOnly(next http.Handler) http.Handler {
	return mw.RequireRole(identity.RoleFaculty, next)
}

func (mw *Middleware) AdminOnly(next http.Handler) http.Handler {
	return mw.RequireRole(identity.RoleAdmin, next)
}

// principal prefers the session cookie and falls back to a bearer token.
func (mw *Middleware) principal(r *http.Request) (Principal, bool) {
	if c, err := r.Cookie(mw.cookieName); err == nil {
		if v := strings.TrimSpace(c.Value); v != "" {
			if p, ok := mw.module.DecodeToken(v); ok {
				return p, true
			}
		}
	}
	if raw := BearerToken(r); raw != "" {
		return mw.module.DecodeToken(raw)
	}
	return Principal{}, false
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
