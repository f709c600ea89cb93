package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jcopacetic/lumi/internal/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewHub(log)
}

func TestJoinBroadcastLeave(t *testing.T) {
	hub := newTestHub(t)
	a := NewConn(nil, uuid.New())
	b := NewConn(nil, uuid.New())
	other := NewConn(nil, uuid.New())

	hub.Join("partner_1", a)
	hub.Join("partner_1", b)
	hub.Join("partner_2", other)

	if got := hub.GroupSize("partner_1"); got != 2 {
		t.Fatalf("group size: want=2 got=%d", got)
	}

	hub.Broadcast("partner_1", map[string]string{"event": "notification", "title": "hello"})

	for _, c := range []*Conn{a, b} {
		select {
		case raw := <-c.Send():
			var msg map[string]string
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal broadcast: %v", err)
			}
			if msg["title"] != "hello" {
				t.Fatalf("payload: got=%v", msg)
			}
		default:
			t.Fatalf("expected message queued for conn %s", c.ID)
		}
	}

	select {
	case <-other.Send():
		t.Fatalf("partner_2 conn must not receive partner_1 broadcast")
	default:
	}

	hub.Leave(a)
	if got := hub.GroupSize("partner_1"); got != 1 {
		t.Fatalf("group size after leave: want=1 got=%d", got)
	}
	hub.Leave(b)
	if got := hub.GroupSize("partner_1"); got != 0 {
		t.Fatalf("group size after both leave: want=0 got=%d", got)
	}
}

func TestBroadcastSkipsFullBuffers(t *testing.T) {
	hub := newTestHub(t)
	c := NewConn(nil, uuid.New())
	hub.Join("partner_1", c)

	for i := 0; i < sendBuffer; i++ {
		hub.Broadcast("partner_1", map[string]int{"n": i})
	}
	// Buffer is full; this must not block.
	done := make(chan struct{})
	go func() {
		hub.Broadcast("partner_1", map[string]string{"overflow": "yes"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on full send buffer")
	}
}

func TestRateLimiterFixedWindow(t *testing.T) {
	l := newRateLimiter(3, time.Minute)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !l.Allow(now) {
			t.Fatalf("allow %d: want=true", i)
		}
	}
	if l.Allow(now.Add(10 * time.Second)) {
		t.Fatalf("4th frame inside window must be rejected")
	}
	if !l.Allow(now.Add(time.Minute)) {
		t.Fatalf("frame in next window must be allowed")
	}
}

func TestConnInboundLimit(t *testing.T) {
	c := NewConn(nil, uuid.New())
	now := time.Now()
	for i := 0; i < InboundRateLimit; i++ {
		if !c.AllowInbound(now) {
			t.Fatalf("frame %d should be allowed", i)
		}
	}
	if c.AllowInbound(now) {
		t.Fatalf("frame beyond limit should be rejected")
	}
}
