package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chatnow/internal/chat"
	"chatnow/internal/config"

	"github.com/gin-gonic/gin"
)

type stubPresence []chat.OnlineUser

func (s stubPresence) OnlineCount() int               { return len(s) }
func (s stubPresence) OnlineUsers() []chat.OnlineUser { return s }

func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	users := stubPresence{
		{Username: "alice", JoinedAt: joined},
		{Username: "bob", JoinedAt: joined.Add(time.Minute)},
	}
	return SetupRouter(cfg, Deps{Presence: users})
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, config.Config{})
	if w := get(r, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAPIHealth(t *testing.T) {
	r := newTestRouter(t, config.Config{})
	w := get(r, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		OnlineUsers int    `json:"onlineUsers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.OnlineUsers != 2 {
		t.Errorf("body = %+v", body)
	}
	if _, err := time.Parse(time.RFC3339Nano, body.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", body.Timestamp, err)
	}
}

func TestAPIStats(t *testing.T) {
	r := newTestRouter(t, config.Config{})
	w := get(r, "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		OnlineUsers int               `json:"onlineUsers"`
		Users       []chat.OnlineUser `json:"users"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.OnlineUsers != 2 || len(body.Users) != 2 || body.Users[0].Username != "alice" {
		t.Errorf("body = %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, config.Config{})
	get(r, "/api/health")
	w := get(r, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestWebsocketRouteRequiresHub(t *testing.T) {
	r := newTestRouter(t, config.Config{})
	if w := get(r, "/ws"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 without hub, got %d", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>index</html>"), 0o600)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600)

	r := newTestRouter(t, config.Config{StaticDir: dir})
	tests := []struct {
		path string
		code int
		body string
	}{
		{"/", http.StatusOK, "<html>index</html>"},
		{"/app.js", http.StatusOK, "console.log(1)"},
		{"/admin", http.StatusOK, "<html>index</html>"},
		{"/missing.css", http.StatusNotFound, ""},
		{"/api/unknown", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := get(r, tt.path)
		if w.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.code)
			continue
		}
		if tt.body != "" && w.Body.String() != tt.body {
			t.Errorf("GET %s body = %q, want %q", tt.path, w.Body.String(), tt.body)
		}
	}
}
