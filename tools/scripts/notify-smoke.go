// Package main provides a CI-friendly smoke test for the student notification feed.
//
// It logs in as a student, opens the feed and waits for the ready event.
// With -expect it then waits for one event of that type, which lets a CI
// job trigger an attendance mark or fee from another step and assert delivery.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "campus.notify.v1"
	cookieName   = "campus_session"
	feedPath     = "/api/v1/student/notifications/ws"
	maxReadBytes = 1 << 20
)

type event struct {
	V    int             `json:"v"`
	Type string          `json:"type"`
	ID   string          `json:"id"`
	TS   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "server base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		roll    = flag.String("roll", "", "student roll number")
		email   = flag.String("email", "", "student email (used when -roll is empty)")
		expect  = flag.String("expect", "", "event type to wait for after ready, e.g. attendance.marked")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	secret := os.Getenv("CAMPUS_SMOKE_PASSWORD")
	if secret == "" {
		fatalf("CAMPUS_SMOKE_PASSWORD is required")
	}
	if *roll == "" && *email == "" {
		fatalf("one of -roll or -email is required")
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}
	wsURL, err := feedURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	root := context.Background()
	cookie := mustLogin(root, *baseURL, *roll, *email, secret, *timeout)

	conn := mustConnect(root, wsURL, *origin, cookie, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	ready := mustRead(root, conn, *timeout)
	if ready.Type != "ready" {
		fatalf("first event: got %q want ready", ready.Type)
	}
	if *verbose {
		fmt.Printf("connected: %s\n", ready.Data)
	}

	if *expect == "" {
		fmt.Println("OK: feed ready")
		return
	}

	deadline := time.Now().Add(*timeout)
	for time.Now().Before(deadline) {
		ev := mustRead(root, conn, time.Until(deadline))
		if *verbose {
			fmt.Printf("event: %s %s\n", ev.Type, ev.Data)
		}
		if ev.Type == *expect {
			fmt.Printf("OK: %s id=%s\n", ev.Type, ev.ID)
			return
		}
	}
	fatalf("no %s event within %s", *expect, *timeout)
}

func feedURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("missing host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + feedPath
	return u.String(), nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func mustLogin(parent context.Context, base, roll, email, secret string, stepTimeout time.Duration) string {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	body := map[string]string{"password": secret}
	if roll != "" {
		body["roll_number"] = roll
	} else {
		body["email"] = email
	}
	raw, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/login", bytes.NewReader(raw))
	if err != nil {
		fatalf("login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fatalf("login: status %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == cookieName && c.Value != "" {
			return c.Name + "=" + c.Value
		}
	}
	fatalf("login: no %s cookie", cookieName)
	return ""
}

func mustConnect(parent context.Context, wsURL, origin, cookie string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	h.Set("Cookie", cookie)
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustRead(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) event {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	mt, data, err := conn.Read(ctx)
	if err != nil {
		fatalf("read: %v", err)
	}
	if mt != websocket.MessageText {
		fatalf("unsupported message type: %v", mt)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		fatalf("bad json: %v", err)
	}
	if ev.Type == "" || ev.ID == "" {
		fatalf("bad event: %s", data)
	}
	return ev
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
