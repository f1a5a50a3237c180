package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/chatdash/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// --- RequestID ---

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var captured string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if len(captured) != 36 {
		t.Errorf("request_id = %q, want UUID形式", captured)
	}
	if got := w.Header().Get("X-Request-ID"); got != captured {
		t.Errorf("X-Request-ID = %q, want %q", got, captured)
	}
}

func TestRequestIDMiddleware_HonoursIncomingHeader(t *testing.T) {
	var captured string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "upstream-123" {
		t.Errorf("request_id = %q, want upstream-123", captured)
	}
}

func TestRequestIDMiddleware_RejectsInvalidHeader(t *testing.T) {
	var captured string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "has space")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured == "has space" {
		t.Error("空白を含むIDは引き継がないこと")
	}
}

// --- Logging ---

func TestLoggingMiddleware_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRequestIDMiddleware()(NewLoggingMiddleware(newTestLogger(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/streams/x", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログがJSONではない: %v (%s)", err, buf.String())
	}
	if entry["method"] != "GET" || entry["path"] != "/streams/x" {
		t.Errorf("method/path = %v %v", entry["method"], entry["path"])
	}
	if entry["status"] != float64(404) {
		t.Errorf("status = %v, want 404", entry["status"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("request_id が含まれること")
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms が含まれること")
	}
}

func TestLoggingMiddleware_ServerErrorIsErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggingMiddleware(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/refresh", nil))

	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("5xx は ERROR レベルで記録されること: %s", buf.String())
	}
	if strings.Contains(buf.String(), "request_id") {
		t.Error("リクエストIDがない場合は request_id を含めないこと")
	}
}

// --- Recovery ---

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRecoveryMiddleware(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic がログに記録されること: %s", buf.String())
	}
}

// --- SecurityHeaders ---

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	NewSecurityHeadersMiddleware()(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("%s ヘッダーが設定されること", h)
		}
	}
}

// --- ErrorResponse ---

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewInvalidChannelIDFormatError())

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("JSONデコードに失敗: %v", err)
	}
	if body.Code != model.ErrCodeChannelIDInvalidFormat || body.Category != "validation" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestWriteErrorResponse_IncludesRequestID(t *testing.T) {
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteInternalServerError(w)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("JSONデコードに失敗: %v", err)
	}
	if body.RequestID != "req-123" {
		t.Errorf("request_id = %q, want req-123", body.RequestID)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

// --- CSRF ---

func TestCSRFMiddleware_GETRequest_SetsCookieAndContextToken(t *testing.T) {
	var token string
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = CSRFToken(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "csrf_token" {
		t.Fatalf("cookies = %v, want csrf_token", cookies)
	}
	if token == "" || token != cookies[0].Value {
		t.Errorf("コンテキストのトークン = %q, want %q", token, cookies[0].Value)
	}
	if cookies[0].HttpOnly {
		t.Error("csrf_token は HttpOnly ではないこと")
	}
}

func TestCSRFMiddleware_GETRequest_ExistingCookie_DoesNotReplace(t *testing.T) {
	var token string
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = CSRFToken(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("既存Cookieがある場合は再設定しないこと")
	}
	if token != "existing" {
		t.Errorf("token = %q, want existing", token)
	}
}

func TestCSRFMiddleware_POST(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		form       string
		wantStatus int
	}{
		{"Cookieなし", "", "tok", "", http.StatusForbidden},
		{"トークン送信なし", "tok", "", "", http.StatusForbidden},
		{"ヘッダー不一致", "tok", "other", "", http.StatusForbidden},
		{"ヘッダー一致", "tok", "tok", "", http.StatusOK},
		{"フォーム一致", "tok", "", "tok", http.StatusOK},
		{"フォーム不一致", "tok", "", "other", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			if tt.form != "" {
				form.Set(CSRFFormField, tt.form)
			}
			req := httptest.NewRequest(http.MethodPost, "/channels", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "csrf_token", Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			w := httptest.NewRecorder()
			NewCSRFMiddleware(CSRFConfig{})(okHandler).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCSRFTokenHandler_ReturnsContextToken(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(NewCSRFTokenHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "abc"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["token"] != "abc" {
		t.Errorf("token = %q, want abc", body["token"])
	}
}

func TestCSRFToken_EmptyContext(t *testing.T) {
	if got := CSRFToken(context.Background()); got != "" {
		t.Errorf("CSRFToken = %q, want empty", got)
	}
}

// --- RateLimit ---

func newTestRateLimiter(generalBurst, mutationBurst int) *RateLimiter {
	return NewRateLimiter(RateLimiterConfig{
		GeneralRate:     PerMinute(1),
		GeneralBurst:    generalBurst,
		MutationRate:    PerMinute(1),
		MutationBurst:   mutationBurst,
		CleanupInterval: time.Hour,
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/channels", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestRateLimiter_Returns429WhenLimitExceeded(t *testing.T) {
	rl := newTestRateLimiter(2, 2)
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.1"))
		if w.Code != http.StatusOK {
			t.Fatalf("%d回目 status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	json.NewDecoder(w.Body).Decode(&body)
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
}

func TestRateLimiter_IsolatesClients(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler)

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.2"))
	if w.Code != http.StatusOK {
		t.Errorf("別クライアントの status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_MutationIndependentFromGeneral(t *testing.T) {
	rl := newTestRateLimiter(10, 1)
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(rl.MutationMiddleware()(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	rl.GeneralMiddleware()(okHandler).ServeHTTP(w, requestFrom("192.0.2.1"))
	if w.Code != http.StatusOK {
		t.Errorf("更新系の制限は全ルートの制限に影響しないこと: status = %d", w.Code)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := newTestRateLimiter(1, 1)
	defer rl.Stop()
	rl.GeneralMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))
	rl.MutationMiddleware()(okHandler).ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1"))

	rl.cleanup(time.Now().Add(3 * time.Hour))

	if rl.GeneralLimiterCount() != 0 || rl.MutationLimiterCount() != 0 {
		t.Errorf("count = %d/%d, want 0/0", rl.GeneralLimiterCount(), rl.MutationLimiterCount())
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.GeneralBurst != 120 || cfg.MutationBurst != 10 {
		t.Errorf("burst = %d/%d, want 120/10", cfg.GeneralBurst, cfg.MutationBurst)
	}
	if cfg.GeneralRate != PerMinute(120) {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
}
