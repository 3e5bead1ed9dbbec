package openairt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeRealtime is a minimal realtime server: it completes the session
// handshake and records every client event it receives.
type fakeRealtime struct {
	t        *testing.T
	srv      *httptest.Server
	received chan map[string]any
	header   chan http.Header

	mu   sync.Mutex
	conn *websocket.Conn
}

func newFakeRealtime(t *testing.T) *fakeRealtime {
	t.Helper()
	f := &fakeRealtime{
		t:        t,
		received: make(chan map[string]any, 256),
		header:   make(chan http.Header, 1),
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.header <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		defer conn.Close()

		f.send(map[string]any{"type": "session.created", "event_id": "srv_1", "session": map[string]any{"id": "sess_1"}})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg["type"] == "session.update" {
				f.send(map[string]any{"type": "session.updated", "event_id": "srv_2", "session": msg["session"]})
			}
			f.received <- msg
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeRealtime) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeRealtime) send(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(f.t, f.conn)
	require.NoError(f.t, f.conn.WriteJSON(v))
}

// next returns the next received client event of the given type, skipping
// others.
func (f *fakeRealtime) next(eventType string) map[string]any {
	f.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-f.received:
			if msg["type"] == eventType {
				return msg
			}
		case <-timeout:
			f.t.Fatalf("no %s received", eventType)
			return nil
		}
	}
}

// nextAny returns the next received client event.
func (f *fakeRealtime) nextAny() map[string]any {
	f.t.Helper()
	select {
	case msg := <-f.received:
		return msg
	case <-time.After(2 * time.Second):
		f.t.Fatal("no event received")
		return nil
	}
}
