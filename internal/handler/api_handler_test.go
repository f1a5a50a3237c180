package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/middleware"
)

func apiPost(path string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set(middleware.CSRFHeaderName, testCSRFToken)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

func TestAPISnapshot_ReturnsCommittedView(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.view = sampleView()

	w := env.get("/api/snapshot")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/snapshot status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got struct {
		Channels    []map[string]any `json:"channels"`
		Streams     []map[string]any `json:"streams"`
		Stats       map[string]any   `json:"stats"`
		Generation  uint64           `json:"generation"`
		LastUpdated string           `json:"last_updated"`
		Error       string           `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.Channels) != 2 || len(got.Streams) != 2 {
		t.Errorf("channels/streams = %d/%d, want 2/2", len(got.Channels), len(got.Streams))
	}
	if got.Stats["totalComments"] != float64(1234567) {
		t.Errorf("stats.totalComments = %v, want 1234567", got.Stats["totalComments"])
	}
	if got.Generation != 3 || got.LastUpdated != "2025/3/4 14:06:07" {
		t.Errorf("generation/last_updated = %d/%q", got.Generation, got.LastUpdated)
	}
	if got.Error != "" {
		t.Errorf("error = %q, want empty", got.Error)
	}
}

func TestAPIRefresh_Success(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.view = sampleView()

	w := env.serve(apiPost("/api/refresh"))
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/refresh status = %d, want %d", w.Code, http.StatusOK)
	}
	if env.dashboard.calls() != 1 {
		t.Errorf("Refresh calls = %d, want 1", env.dashboard.calls())
	}
}

func TestAPIRefresh_ClientDisconnectDoesNotCancelRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.view = sampleView()
	var ctxErr error
	env.dashboard.refreshFn = func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return ctxErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := env.serve(apiPost("/api/refresh").WithContext(ctx))
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/refresh status = %d, want %d", w.Code, http.StatusOK)
	}
	if ctxErr != nil {
		t.Errorf("更新に渡されたコンテキストがキャンセルされている: %v", ctxErr)
	}
}

func TestAPIRefresh_FailureReturns502(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.refreshFn = func(ctx context.Context) error {
		return errors.New("API Error: 503 Service Unavailable - upstream down")
	}

	w := env.serve(apiPost("/api/refresh"))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != "GATEWAY_FAILED" {
		t.Errorf("code = %q, want GATEWAY_FAILED", body.Code)
	}
	if body.Message != "API Error: 503 Service Unavailable - upstream down" {
		t.Errorf("message = %q", body.Message)
	}
}

func TestAPIRefresh_ClosedReturns503(t *testing.T) {
	env := newTestEnv(t)
	env.dashboard.refreshFn = func(ctx context.Context) error {
		return dashboard.ErrClosed
	}

	w := env.serve(apiPost("/api/refresh"))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAPIRefresh_RequiresCSRFHeader(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if env.dashboard.calls() != 0 {
		t.Errorf("Refresh calls = %d, want 0", env.dashboard.calls())
	}
}

func TestAPICSRFToken_ReturnsCookieToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	w := env.serve(req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["token"] != testCSRFToken {
		t.Errorf("token = %q, want %q", body["token"], testCSRFToken)
	}
}
