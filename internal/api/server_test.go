package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maohuynh-embedded/camnode/internal/device"
	"github.com/maohuynh-embedded/camnode/internal/pipeline"
	"github.com/maohuynh-embedded/camnode/internal/telemetry"
)

func testServer(t *testing.T) (*Server, *pipeline.State) {
	t.Helper()
	state := pipeline.NewState(pipeline.Config{},
		device.NewSimCapture(4), device.NewSimEncoder(), telemetry.New())
	srv := NewServer(&Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		State:        state,
	})
	return srv, state
}

func doRequest(t *testing.T, srv *Server, method, path string, authed bool, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
		req.Header.Set("Authorization", "Basic "+creds)
	}
	rec := httptest.NewRecorder()
	srv.GetMux().ServeHTTP(rec, req)
	return rec
}

func TestHealthRequiresNoAuth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/health", false, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestVersionRequiresNoAuth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/version", false, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_version") {
		t.Errorf("version body missing go_version: %s", rec.Body.String())
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/status", false, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Basic") {
		t.Errorf("missing WWW-Authenticate header, got %q", got)
	}
}

func TestStatusReportsIdlePipeline(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/status", true, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var data StatusData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if data.Streaming {
		t.Error("expected idle pipeline")
	}
	if data.SessionID != "" {
		t.Errorf("expected empty session ID, got %q", data.SessionID)
	}
	if data.ArenaLiveBytes != 0 {
		t.Errorf("expected no live arena bytes, got %d", data.ArenaLiveBytes)
	}
}

func TestResetStatsPostsControlEvent(t *testing.T) {
	srv, state := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/stats/reset", true, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	ev, ok := state.Control.TryRecv()
	if !ok {
		t.Fatal("no control event posted")
	}
	if ev.Kind != pipeline.KindResetStats {
		t.Errorf("expected reset-stats event, got %s", ev.Kind)
	}
}

func TestStreamStopWithoutSessionConflicts(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/stream/stop", true, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStreamConfigWithoutSessionConflicts(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/stream/config", true,
		`{"width": 640, "height": 480}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQueryParameterAuthFallback(t *testing.T) {
	srv, _ := testServer(t)

	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	req := httptest.NewRequest(http.MethodGet, "/api/status?auth="+creds, nil)
	rec := httptest.NewRecorder()
	srv.GetMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with query auth, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWrongCredentialsRejected(t *testing.T) {
	srv, _ := testServer(t)

	creds := base64.StdEncoding.EncodeToString([]byte("admin:wrong"))
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Basic "+creds)
	rec := httptest.NewRecorder()
	srv.GetMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUpdateRoutesAbsentWithoutService(t *testing.T) {
	srv, _ := testServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/update/status", true, "")
	// The wildcard OPTIONS handler for CORS makes the mux answer 405
	// instead of 404 for unregistered paths.
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 404 or 405 for unregistered update route, got %d", rec.Code)
	}
}
