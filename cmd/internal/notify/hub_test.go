package notify

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ev, err := NewEvent(TypeFeeCreated, map[string]any{"fee_id": "f1"}, now)
	require.NoError(t, err)
	require.NoError(t, ev.Validate())
	assert.Equal(t, Version, ev.V)
	assert.Len(t, ev.ID, 26)
	assert.JSONEq(t, `{"fee_id":"f1"}`, string(ev.Data))

	_, err = NewEvent("message.send", nil, now)
	require.Error(t, err)

	_, err = NewEvent(TypeFeeCreated, func() {}, now)
	require.Error(t, err)

	bad := ev
	bad.V = 2
	require.Error(t, bad.Validate())
}

func TestHub_PublishToIdentitySessions(t *testing.T) {
	h := NewHub(quietLogger())

	a1 := NewClient("alice", "s1", 4)
	a2 := NewClient("alice", "s2", 4)
	b := NewClient("bob", "s3", 4)
	h.Join(a1)
	h.Join(a2)
	h.Join(b)
	assert.Equal(t, 2, h.Sessions("alice"))

	h.Notify("alice", TypeResultPublished, map[string]string{"course_id": "c1"})

	for _, c := range []*Client{a1, a2} {
		select {
		case ev := <-c.Send:
			assert.Equal(t, TypeResultPublished, ev.Type)
			var data map[string]string
			require.NoError(t, json.Unmarshal(ev.Data, &data))
			assert.Equal(t, "c1", data["course_id"])
		default:
			t.Fatalf("session %s received nothing", c.SessionID)
		}
	}
	assert.Empty(t, b.Send)

	h.Leave(a1)
	assert.Equal(t, 1, h.Sessions("alice"))
	select {
	case <-a1.Done():
	default:
		t.Fatalf("leave must close the client")
	}

	h.Leave(a2)
	h.Leave(b)
	assert.Equal(t, 0, h.Sessions("alice"))
	assert.Equal(t, 0, h.Publish("alice", Event{Type: TypeFeeCreated}))
}

func TestHub_PublishDropsUnderBackpressure(t *testing.T) {
	h := NewHub(quietLogger())
	c := NewClient("alice", "s1", 1)
	h.Join(c)

	ev := Event{V: Version, Type: TypeFeeCreated}
	assert.Equal(t, 1, h.Publish("alice", ev))
	assert.Equal(t, 0, h.Publish("alice", ev))

	c.Close()
	<-c.Send
	assert.Equal(t, 0, h.Publish("alice", ev), "closing clients are skipped")
}

func TestHub_ConcurrentJoinLeavePublish(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := NewHub(quietLogger())
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := NewClient("alice", string(rune('a'+i))+string(rune('a'+j%26)), 2)
				h.Join(c)
				h.Notify("alice", TypeAttendanceMarked, map[string]int{"n": j})
				h.Leave(c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, h.Sessions("alice"))
}

func TestNilHubAndClient(t *testing.T) {
	var h *Hub
	h.Join(NewClient("a", "s", 1))
	h.Notify("a", TypeFeeCreated, nil)
	assert.Equal(t, 0, h.Publish("a", Event{}))

	var c *Client
	c.Close()
	<-c.Done()
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Second)

	assert.True(t, rl.Allow(now))
	assert.True(t, rl.Allow(now.Add(100*time.Millisecond)))
	assert.False(t, rl.Allow(now.Add(200*time.Millisecond)))
	assert.True(t, rl.Allow(now.Add(1100*time.Millisecond)))
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub(quietLogger())
	a := NewClient("stu-1", "s1", 4)
	b := NewClient("stu-2", "s2", 4)
	h.Join(a)
	h.Join(b)

	assert.Equal(t, 2, h.CloseAll())
	assert.Equal(t, 0, h.Sessions("stu-1"))
	for _, c := range []*Client{a, b} {
		select {
		case <-c.Done():
		default:
			t.Fatalf("client %s not closed", c.SessionID)
		}
	}

	// Leave after CloseAll is harmless.
	h.Leave(a)
	assert.Equal(t, 0, h.CloseAll())
}
