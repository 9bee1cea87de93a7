package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lngsa1234/avari-socketio-backend/internal/adapters/signal"
	"github.com/lngsa1234/avari-socketio-backend/internal/app"
	"github.com/lngsa1234/avari-socketio-backend/internal/config"
	"github.com/lngsa1234/avari-socketio-backend/internal/transcribe"
)

func newTestRouter(t *testing.T, cfg *config.Config, reg *app.Registry) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := signal.NewSignalWSController(reg, app.NewHub(reg), transcribe.NewBridge(&transcribe.Client{}), cfg.AllowedOrigin, 64, 0)
	r := SetupRouter(context.Background(), cfg, reg, ctl)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHealthCounts(t *testing.T) {
	reg := app.NewRegistry()
	ts := newTestRouter(t, &config.Config{Mode: "test", StaticPath: "."}, reg)

	body := getJSON(t, ts.URL+"/health")
	if body["status"] != "ok" || body["connections"] != float64(0) || body["matches"] != float64(0) {
		t.Fatalf("health = %v", body)
	}
}

func TestMatchesDiagnostics(t *testing.T) {
	reg := app.NewRegistry()
	ts := newTestRouter(t, &config.Config{Mode: "test", StaticPath: "."}, reg)

	body := getJSON(t, ts.URL+"/api/matches")
	matches, ok := body["matches"].([]any)
	if !ok || len(matches) != 0 {
		t.Fatalf("matches = %v", body)
	}
}

func TestICEServersAssembly(t *testing.T) {
	cfg := &config.Config{
		Mode:           "test",
		StaticPath:     ".",
		STUNURLs:       []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"},
		TURNURL:        "turn:turn.example.com:3478",
		TURNUsername:   "relay-user",
		TURNCredential: "relay-pass",
	}
	ts := newTestRouter(t, cfg, app.NewRegistry())

	body := getJSON(t, ts.URL+"/api/ice-servers")
	servers, ok := body["iceServers"].([]any)
	if !ok || len(servers) != 3 {
		t.Fatalf("iceServers = %v", body)
	}

	turn, _ := servers[2].(map[string]any)
	if turn["username"] != "relay-user" || turn["credential"] != "relay-pass" {
		t.Fatalf("turn entry = %v", turn)
	}
}

func TestICEServersWithoutTURN(t *testing.T) {
	cfg := &config.Config{
		Mode:       "test",
		StaticPath: ".",
		STUNURLs:   []string{"stun:stun.l.google.com:19302"},
	}
	servers := ICEServers(cfg)
	if len(servers) != 1 {
		t.Fatalf("servers = %+v", servers)
	}
	if servers[0].Username != "" || servers[0].Credential != nil {
		t.Fatalf("stun entry carries credentials: %+v", servers[0])
	}
}
