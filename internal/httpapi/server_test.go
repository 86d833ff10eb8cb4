package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizbot/internal/storage"
	logx "quizbot/pkg/logx"
)

func newTestAPI(t *testing.T, token string) http.Handler {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	_ = store.PutStat(ctx, storage.StatRecord{Mode: "art", EntityID: "alice", Label: "Alice", Total: 4, Correct: 3, Percent: 75})
	_ = store.PutStat(ctx, storage.StatRecord{Mode: "avatar", EntityID: "bob", Total: 2, Incorrect: 2})

	s := New(Config{Token: token}, Deps{
		Store:  store,
		Health: func() Report { return Report{Status: "ok", Sessions: 3} },
	}, logx.Nop())
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestAPI(t, "secret"), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var rep Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Sessions != 3 {
		t.Fatalf("Sessions = %d, want 3", rep.Sessions)
	}
}

func TestListStatsByMode(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestAPI(t, ""), http.MethodGet, "/api/v1/stats?mode=art", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Count int                  `json:"count"`
		Items []storage.StatRecord `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Items[0].EntityID != "alice" {
		t.Fatalf("body = %+v, want [alice]", body)
	}
}

func TestGetStat(t *testing.T) {
	t.Parallel()

	h := newTestAPI(t, "")
	rec := do(t, h, http.MethodGet, "/api/v1/stats/art/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got storage.StatRecord
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Percent != 75 {
		t.Fatalf("Percent = %d, want 75", got.Percent)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/stats/art/nobody", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/stats/art/alice", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", rec.Code)
	}
}

func TestOverview(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestAPI(t, ""), http.MethodGet, "/api/v1/stats/overview", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ov struct {
		Rounds int `json:"rounds"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &ov)
	if ov.Rounds != 6 {
		t.Fatalf("Rounds = %d, want 6", ov.Rounds)
	}
}

func TestTokenRequired(t *testing.T) {
	t.Parallel()

	h := newTestAPI(t, "secret")
	tests := []struct {
		name   string
		target string
		hdr    map[string]string
		want   int
	}{
		{"missing", "/api/v1/stats", nil, http.StatusUnauthorized},
		{"wrong", "/api/v1/stats?token=nope", nil, http.StatusUnauthorized},
		{"query", "/api/v1/stats?token=secret", nil, http.StatusOK},
		{"bearer", "/api/v1/stats", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}
	for _, tt := range tests {
		if rec := do(t, h, http.MethodGet, tt.target, tt.hdr); rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestStatsDisabled(t *testing.T) {
	t.Parallel()

	h := New(Config{}, Deps{}, logx.Nop()).Handler()
	if rec := do(t, h, http.MethodGet, "/api/v1/stats", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	for addr, want := range map[string]bool{
		"127.0.0.1:8080": true,
		"localhost:80":   true,
		"[::1]:9000":     true,
		"0.0.0.0:8080":   false,
		":8080":          false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, Deps{}, logx.Nop())
	s.Start(context.Background())
	if s.Supervisor() == nil {
		t.Fatalf("Supervisor is nil after Start")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Stop(ctx)
	if s.Supervisor() != nil {
		t.Fatalf("Supervisor not cleared after Stop")
	}
}
