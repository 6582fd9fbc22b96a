package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

func waitForClients(t *testing.T, b *Broker, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d; want %d", b.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	id, ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d; want 1", b.ClientCount())
	}

	b.Publish(Event{Type: "step", RunID: "r1", Payload: "{}"})
	select {
	case evt := <-ch:
		if evt.Type != "step" || evt.RunID != "r1" {
			t.Fatalf("event = %+v; want step/r1", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	b.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
	if b.ClientCount() != 0 {
		t.Fatalf("ClientCount() = %d; want 0", b.ClientCount())
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	_, _ = b.Subscribe()
	for i := 0; i < subscriberBufSize+5; i++ {
		b.Publish(Event{Type: "step"})
	}
	if b.Dropped() != 5 {
		t.Fatalf("Dropped() = %d; want 5", b.Dropped())
	}
}

func TestBrokerObserver(t *testing.T) {
	b := NewBroker()
	_, ch := b.Subscribe()

	b.Observer()(smoke.Event{Type: smoke.EventCheckDone, RunID: "r1", Check: "setup-guide", Status: smoke.StatusPassed})
	evt := <-ch
	var got smoke.Event
	if err := json.Unmarshal([]byte(evt.Payload), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Check != "setup-guide" || got.Status != smoke.StatusPassed || evt.Type != smoke.EventCheckDone {
		t.Fatalf("event = %+v payload %+v", evt, got)
	}
}

func TestSSEHandlerFilters(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(SSEHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?types=run_finished&run_id=r2", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	waitForClients(t, b, 1)

	b.Publish(Event{Type: "step", RunID: "r2", Payload: `{"n":1}`})
	b.Publish(Event{Type: "run_finished", RunID: "r1", Payload: `{"n":2}`})
	b.Publish(Event{Type: "run_finished", RunID: "r2", Payload: `{"n":3}`})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	want := []string{"event: run_finished", `data: {"n":3}`}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("sse frame = %q; want %q", lines, want)
	}
}

func TestWSHandler(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(WSHandler(b))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?types=check_done")
	if err != nil {
		t.Fatalf("ws.Dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	waitForClients(t, b, 1)

	b.Publish(Event{Type: "step", Payload: `{"type":"step"}`})
	b.Publish(Event{Type: "check_done", Payload: `{"type":"check_done"}`})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("ReadServerText: %v", err)
	}
	if string(data) != `{"type":"check_done"}` {
		t.Fatalf("frame = %s; want check_done payload", data)
	}

	_ = conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed after client close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
