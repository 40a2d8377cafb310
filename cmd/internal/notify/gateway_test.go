package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campus/cmd/identity"
	"campus/cmd/internal/auth"
	"campus/cmd/security/password"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type gatewayFixture struct {
	hub    *Hub
	module *auth.Module
	srv    *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	module, err := auth.New(&auth.Secrets{
		JWTSecret: []byte("notify-test-secret-0123456789abcdef"),
		Pepper:    []byte("pepper"),
	}, password.NewBcrypt(bcrypt.MinCost))
	require.NoError(t, err)

	hub := NewHub(quietLogger())
	gw := NewGateway(quietLogger(), hub, DefaultGatewayConfig())
	mw := auth.NewMiddleware(module, "")

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/student/notifications/ws", mw.StudentOnly(gw))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &gatewayFixture{hub: hub, module: module, srv: srv}
}

func (f *gatewayFixture) token(t *testing.T, id string, role identity.Role) string {
	t.Helper()
	raw, _, err := f.module.IssueToken(id, role)
	require.NoError(t, err)
	return raw
}

func (f *gatewayFixture) dial(ctx context.Context, tok, origin string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/student/notifications/ws"
	h := http.Header{}
	if tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	if origin != "" {
		h.Set("Origin", origin)
	}
	return websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{Subprotocol},
		HTTPHeader:   h,
	})
}

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.NoError(t, ev.Validate())
	return ev
}

func TestGateway_DeliversEventsToStudent(t *testing.T) {
	f := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	conn, _, err := f.dial(ctx, f.token(t, "stu-1", identity.RoleStudent), "http://localhost")
	require.NoError(t, err)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	ready := readEvent(ctx, t, conn)
	require.Equal(t, TypeReady, ready.Type)
	var rd ReadyData
	require.NoError(t, json.Unmarshal(ready.Data, &rd))
	assert.Len(t, rd.SessionID, 26)
	assert.Equal(t, 1, f.hub.Sessions("stu-1"))

	f.hub.Notify("stu-2", TypeFeeCreated, map[string]string{"fee_id": "other"})
	f.hub.Notify("stu-1", TypeFeeCreated, map[string]string{"fee_id": "f1"})

	ev := readEvent(ctx, t, conn)
	assert.Equal(t, TypeFeeCreated, ev.Type)
	assert.JSONEq(t, `{"fee_id":"f1"}`, string(ev.Data))

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
	require.Eventually(t, func() bool { return f.hub.Sessions("stu-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_RejectsNonStudents(t *testing.T) {
	f := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	_, resp, err := f.dial(ctx, "", "http://localhost")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = f.dial(ctx, f.token(t, "fac-1", identity.RoleFaculty), "http://localhost")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGateway_OriginPolicy(t *testing.T) {
	f := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	tok := f.token(t, "stu-1", identity.RoleStudent)

	_, resp, err := f.dial(ctx, tok, "https://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = f.dial(ctx, tok, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOriginHelpers(t *testing.T) {
	assert.Equal(t, "localhost", originHostOnly("http://LocalHost:3000"))
	assert.Equal(t, "example.com", originHostOnly("example.com:443"))
	assert.Equal(t, "", originHostOnly(""))

	assert.Equal(t, []string{"127.0.0.1", "localhost"},
		originPatterns([]string{"http://localhost", "http://127.0.0.1:8080", "http://localhost:5173", "*"}))
}

func TestLoadGatewayConfigFromEnv(t *testing.T) {
	t.Setenv("CAMPUS_WS_ALLOWED_ORIGINS", "https://campus.example, https://admin.campus.example")
	t.Setenv("CAMPUS_WS_SEND_QUEUE", "128")
	t.Setenv("CAMPUS_WS_RATE_WINDOW", "bogus")

	cfg := LoadGatewayConfigFromEnv()
	assert.Equal(t, []string{"https://campus.example", "https://admin.campus.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 128, cfg.SendQueueSize)
	assert.Equal(t, rateLimitWindow, cfg.RateWindow)
	assert.True(t, cfg.OriginRequired)
}

func TestGateway_HubCloseAllHangsUp(t *testing.T) {
	f := newGatewayFixture(t)
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	conn, _, err := f.dial(ctx, f.token(t, "stu-1", identity.RoleStudent), "http://localhost")
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	readEvent(ctx, t, conn)
	require.Equal(t, 1, f.hub.CloseAll())

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
