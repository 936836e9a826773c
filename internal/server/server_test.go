package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/speedtype/internal/leaderboard"
	"github.com/verte-zerg/speedtype/internal/model"
	"github.com/verte-zerg/speedtype/internal/passage"
	"github.com/verte-zerg/speedtype/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	board  *leaderboard.Board
	store  *store.Store
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	board := leaderboard.New(st, 5, nil)
	cfg.Board = board
	cfg.History = st
	return &testEnv{server: New(cfg), board: board, store: st}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t, Config{})
	w := env.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestHealthReportsStoredResults(t *testing.T) {
	env := newTestEnv(t, Config{})
	if err := env.board.Submit(context.Background(), model.Result{Name: "ada", WPM: 40, Accuracy: 95, DurationSec: 60}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	w := env.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"results":1`) {
		t.Fatalf("expected one stored result, got %d: %s", w.Code, w.Body.String())
	}

	if err := env.store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	w = env.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"status":"degraded"`) {
		t.Fatalf("expected degraded health on a closed store, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPassageEndpoint(t *testing.T) {
	lib, err := passage.ParseLibrary([]byte("passages:\n  - name: short\n    text: \"  go   fast \"\n"))
	if err != nil {
		t.Fatalf("parse library: %v", err)
	}
	env := newTestEnv(t, Config{Library: lib})

	w := env.do(t, http.MethodGet, "/api/passage", nil)
	var resp passageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != passage.SampleText || resp.Length != len([]rune(passage.SampleText)) {
		t.Fatalf("unexpected sample passage: %+v", resp)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("expected no-store cache header, got %q", cc)
	}

	w = env.do(t, http.MethodGet, "/api/passage?source=library&name=short", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "go fast" || resp.Length != 7 {
		t.Fatalf("unexpected library passage: %+v", resp)
	}

	if w := env.do(t, http.MethodGet, "/api/passage?source=library&name=missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown passage, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/passage?source=text&text=%20%20%0A", nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for blank text, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/passage?source=pdf", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown source, got %d", w.Code)
	}
}

func TestSubmitResultAndLeaderboard(t *testing.T) {
	env := newTestEnv(t, Config{RateRPS: 100, RateBurst: 100})
	for _, body := range []map[string]any{
		{"name": "ann", "wpm": 40, "accuracy": 90, "errors": 3, "durationSec": 60},
		{"name": "bob", "wpm": 75, "accuracy": 98, "errors": 1, "durationSec": 60, "reason": "completed"},
	} {
		if w := env.do(t, http.MethodPost, "/api/results", body); w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := env.do(t, http.MethodGet, "/api/leaderboard?limit=1", nil)
	var resp struct {
		Results []model.Result `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Name != "bob" {
		t.Fatalf("unexpected leaderboard: %+v", resp.Results)
	}

	w = env.do(t, http.MethodGet, "/api/results?name=ann", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].WPM != 40 {
		t.Fatalf("unexpected history: %+v", resp.Results)
	}

	if w := env.do(t, http.MethodGet, "/api/leaderboard?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestSubmitResultValidation(t *testing.T) {
	env := newTestEnv(t, Config{RateRPS: 100, RateBurst: 100})
	cases := map[string]map[string]any{
		"missing name":   {"wpm": 10, "accuracy": 90, "durationSec": 60},
		"blank name":     {"name": "   ", "wpm": 10, "accuracy": 90, "durationSec": 60},
		"negative wpm":   {"name": "a", "wpm": -1, "accuracy": 90, "durationSec": 60},
		"accuracy > 100": {"name": "a", "wpm": 10, "accuracy": 101, "durationSec": 60},
		"zero duration":  {"name": "a", "wpm": 10, "accuracy": 90, "durationSec": 0},
		"bad reason":     {"name": "a", "wpm": 10, "accuracy": 90, "durationSec": 60, "reason": "quit"},
	}
	for name, body := range cases {
		if w := env.do(t, http.MethodPost, "/api/results", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
	}
	count, err := env.store.CountResults(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("expected nothing stored, got %d (%v)", count, err)
	}
}

func TestSubmitResultRateLimited(t *testing.T) {
	env := newTestEnv(t, Config{RateRPS: 0.001, RateBurst: 2})
	body := map[string]any{"name": "ann", "wpm": 40, "accuracy": 90, "durationSec": 60}
	for i := 0; i < 2; i++ {
		if w := env.do(t, http.MethodPost, "/api/results", body); w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, w.Code)
		}
	}
	if w := env.do(t, http.MethodPost, "/api/results", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/leaderboard", nil); w.Code != http.StatusOK {
		t.Fatalf("reads should not be rate limited, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodGet, "/healthz", nil)
	w := env.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "speedtype_http_requests_total") {
		t.Fatalf("expected prometheus output, got %d", w.Code)
	}
}
