package transcribe

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, m)
	}
	return out
}

// waitFor polls until the connection has captured an event of the given
// type or the deadline passes.
func (f *fakeConn) waitFor(t *testing.T, eventType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range f.events(t) {
			if ev["type"] == eventType {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q event; got %v", eventType, f.events(t))
	return nil
}

// providerStub is a stand-in Deepgram endpoint. Each accepted session is
// handed to handle on its own goroutine.
func providerStub(t *testing.T, handle func(*websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("stub upgrade: %v", err)
			return
		}
		handle(ws)
	}))
	t.Cleanup(ts.Close)
	return ts, "ws" + strings.TrimPrefix(ts.URL, "http")
}

// drain keeps a stub session open until the client goes away.
func drain(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func TestStartWithoutCredential(t *testing.T) {
	b := NewBridge(&Client{})
	conn := &fakeConn{}

	err := b.Start("s1", conn, "")
	var re *core.RelayError
	if !errors.As(err, &re) || re.Type != core.ErrTypeConfiguration {
		t.Fatalf("want configuration error, got %v", err)
	}
	if b.Active("s1") {
		t.Fatalf("session opened without credential")
	}
	if len(conn.events(t)) != 0 {
		t.Fatalf("bridge emitted events on refused start: %v", conn.events(t))
	}
}

func TestFeedWithoutSessionDrops(t *testing.T) {
	b := NewBridge(&Client{APIKey: "k"})
	// Must not panic or error; audio before start is lost by design.
	b.Feed("s1", []byte{0x01, 0x02})
}

func TestStartEmitsReadyAndResults(t *testing.T) {
	_, url := providerStub(t, func(ws *websocket.Conn) {
		result := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello world","confidence":0.98}]}}`
		interim := `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`
		_ = ws.WriteMessage(websocket.TextMessage, []byte(interim))
		_ = ws.WriteMessage(websocket.TextMessage, []byte(result))
		drain(ws)
	})

	b := NewBridge(&Client{APIKey: "k", URL: url})
	conn := &fakeConn{}
	if err := b.Start("s1", conn, ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop("s1")

	conn.waitFor(t, "transcription:ready")
	ev := conn.waitFor(t, "transcription:result")
	if ev["text"] != "hello world" || ev["isFinal"] != true {
		t.Fatalf("result = %v", ev)
	}
	if _, ok := ev["timestamp"].(float64); !ok {
		t.Fatalf("missing timestamp: %v", ev)
	}

	// The empty interim frame must not surface.
	for _, e := range conn.events(t) {
		if e["type"] == "transcription:result" && e["text"] == "" {
			t.Fatalf("empty transcript forwarded: %v", e)
		}
	}
}

func TestRestartClosesPreviousSession(t *testing.T) {
	opened := make(chan *websocket.Conn, 2)
	closed := make(chan struct{}, 2)
	_, url := providerStub(t, func(ws *websocket.Conn) {
		opened <- ws
		drain(ws)
		closed <- struct{}{}
	})

	b := NewBridge(&Client{APIKey: "k", URL: url})
	conn := &fakeConn{}
	if err := b.Start("s1", conn, ""); err != nil {
		t.Fatalf("first start: %v", err)
	}
	<-opened

	if err := b.Start("s1", conn, "es"); err != nil {
		t.Fatalf("second start: %v", err)
	}
	defer b.Stop("s1")
	<-opened

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("first provider session not closed on restart")
	}
	if !b.Active("s1") {
		t.Fatalf("replacement session missing")
	}
}

func TestFeedForwardsVerbatim(t *testing.T) {
	got := make(chan []byte, 1)
	_, url := providerStub(t, func(ws *websocket.Conn) {
		mt, data, err := ws.ReadMessage()
		if err == nil && mt == websocket.BinaryMessage {
			got <- data
		}
		drain(ws)
	})

	b := NewBridge(&Client{APIKey: "k", URL: url})
	conn := &fakeConn{}
	if err := b.Start("s1", conn, ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop("s1")

	chunk := []byte{0x00, 0x10, 0x7f, 0xff}
	b.Feed("s1", chunk)

	select {
	case data := <-got:
		if string(data) != string(chunk) {
			t.Fatalf("chunk mangled: %v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("chunk never reached provider")
	}
}

func TestProviderCloseEmitsClosed(t *testing.T) {
	_, url := providerStub(t, func(ws *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ws.Close()
	})

	b := NewBridge(&Client{APIKey: "k", URL: url})
	conn := &fakeConn{}
	if err := b.Start("s1", conn, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	ev := conn.waitFor(t, "transcription:closed")
	if ev["code"] != float64(websocket.CloseNormalClosure) || ev["reason"] != "done" {
		t.Fatalf("closed event = %v", ev)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Active("s1") {
		if time.Now().After(deadline) {
			t.Fatalf("session not removed after provider close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	_, url := providerStub(t, func(ws *websocket.Conn) { drain(ws) })

	b := NewBridge(&Client{APIKey: "k", URL: url})
	conn := &fakeConn{}
	if err := b.Start("s1", conn, ""); err != nil {
		t.Fatalf("start: %v", err)
	}

	b.Stop("s1")
	b.Stop("s1")
	if b.Active("s1") {
		t.Fatalf("session survived stop")
	}
	// Audio after stop is dropped, not an error.
	b.Feed("s1", []byte{0x00})
}

func TestDefaultLanguageApplied(t *testing.T) {
	lang := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang <- r.URL.Query().Get("language")
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		drain(ws)
	}))
	t.Cleanup(ts.Close)

	b := NewBridge(&Client{APIKey: "k", URL: "ws" + strings.TrimPrefix(ts.URL, "http")})
	conn := &fakeConn{}
	if err := b.Start("s1", conn, ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer b.Stop("s1")

	select {
	case got := <-lang:
		if got != DefaultLanguage {
			t.Fatalf("language = %q, want %q", got, DefaultLanguage)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("provider never dialed")
	}
}
