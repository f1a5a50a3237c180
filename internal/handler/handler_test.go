package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/gateway"
	"github.com/hitoshi/chatdash/internal/middleware"
	"github.com/hitoshi/chatdash/internal/model"
	"github.com/hitoshi/chatdash/internal/security"
)

const (
	testCSRFToken = "test-csrf-token"
	testChannelID = "UC1CfXB_kRs3C-zaeTG3oGyg"
)

// --- モック ---

type mockDashboard struct {
	mu           sync.Mutex
	view         dashboard.View
	streams      map[string]model.Stream
	refreshFn    func(ctx context.Context) error
	refreshCalls int
}

func (m *mockDashboard) View() dashboard.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func (m *mockDashboard) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.refreshCalls++
	fn := m.refreshFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (m *mockDashboard) FindStream(videoID string) (model.Stream, bool) {
	s, ok := m.streams[videoID]
	return s, ok
}

func (m *mockDashboard) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCalls
}

type mockChannelService struct {
	addFn    func(ctx context.Context, raw string) (*model.Channel, error)
	toggleFn func(ctx context.Context, channelID string, confirmed bool) (*model.Channel, error)
	stopFn   func(ctx context.Context, channelID string, confirmed bool) (*model.ChannelMutation, error)
	channels []model.Channel
	busy     []string
}

func (m *mockChannelService) Add(ctx context.Context, raw string) (*model.Channel, error) {
	return m.addFn(ctx, raw)
}

func (m *mockChannelService) Toggle(ctx context.Context, channelID string, confirmed bool) (*model.Channel, error) {
	return m.toggleFn(ctx, channelID, confirmed)
}

func (m *mockChannelService) Stop(ctx context.Context, channelID string, confirmed bool) (*model.ChannelMutation, error) {
	return m.stopFn(ctx, channelID, confirmed)
}

func (m *mockChannelService) Find(channelID string) (model.Channel, bool) {
	for _, ch := range m.channels {
		if ch.ChannelID == channelID {
			return ch, true
		}
	}
	return model.Channel{}, false
}

func (m *mockChannelService) BusyIDs() []string {
	return m.busy
}

type mockStreamReader struct {
	getStreamFn    func(ctx context.Context, videoID string) (*model.Stream, error)
	listCommentsFn func(ctx context.Context, videoID string, query gateway.CommentQuery) (*model.CommentPage, error)
}

func (m *mockStreamReader) GetStream(ctx context.Context, videoID string) (*model.Stream, error) {
	if m.getStreamFn == nil {
		return nil, &gateway.Error{StatusCode: http.StatusNotFound, Status: "Not Found", Body: "{}"}
	}
	return m.getStreamFn(ctx, videoID)
}

func (m *mockStreamReader) ListComments(ctx context.Context, videoID string, query gateway.CommentQuery) (*model.CommentPage, error) {
	if m.listCommentsFn == nil {
		return &model.CommentPage{Comments: []model.Comment{}}, nil
	}
	return m.listCommentsFn(ctx, videoID, query)
}

// --- ヘルパー ---

type testEnv struct {
	dashboard *mockDashboard
	channels  *mockChannelService
	streams   *mockStreamReader
	logs      *bytes.Buffer
	router    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		dashboard: &mockDashboard{streams: map[string]model.Stream{}},
		channels:  &mockChannelService{},
		streams:   &mockStreamReader{},
		logs:      &bytes.Buffer{},
	}
	logger := slog.New(slog.NewJSONHandler(env.logs, nil))

	renderer, err := NewRenderer(AppInfo{
		Environment: "test",
		Version:     "1.2.3",
		BuildTime:   "2025-03-04T05:06:07Z",
		GatewayURL:  "https://api.example.com/prod",
	}, security.NewContentSanitizer(), time.UTC, logger)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:   middleware.PerMinute(6000),
		GeneralBurst:  1000,
		MutationRate:  middleware.PerMinute(6000),
		MutationBurst: 1000,
	})
	t.Cleanup(limiter.Stop)

	env.router = NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		Renderer:          renderer,
		Dashboard:         env.dashboard,
		Channels:          env.channels,
		Streams:           env.streams,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("chatdash_refresh_success_total 1"))
		}),
	})
	return env
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.serve(httptest.NewRequest(http.MethodGet, path, nil))
}

// postForm はCSRFトークン付きのフォーム送信リクエストを生成する。
func postForm(path string, form url.Values) *http.Request {
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	return req
}

func int64Ptr(n int64) *int64 { return &n }

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("response body should contain %q\nbody: %s", want, body)
	}
}

func assertNotContains(t *testing.T, body, unwanted string) {
	t.Helper()
	if strings.Contains(body, unwanted) {
		t.Errorf("response body should not contain %q", unwanted)
	}
}

func sampleView() dashboard.View {
	return dashboard.View{
		Snapshot: dashboard.Snapshot{
			Channels: []model.Channel{
				{ChannelID: testChannelID, ChannelName: "テストチャンネル", IsActive: true, CreatedAt: "2025-01-02T03:04:05Z", SubscriberCount: int64Ptr(12345)},
				{ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", ChannelName: "停止中チャンネル", IsActive: false, CreatedAt: "2025-01-03T00:00:00Z"},
			},
			Streams: []model.Stream{
				{VideoID: "vid-live", ChannelID: testChannelID, Title: "ライブ配信", Status: model.StreamStatusLive, CreatedAt: "2025-03-04T05:00:00Z"},
				{VideoID: "vid-upcoming", ChannelID: testChannelID, Title: "予約配信", Status: model.StreamStatusUpcoming, CreatedAt: "2025-03-04T05:00:00Z", ScheduledStartTime: "2025-03-05T10:00:00Z"},
			},
			CollectionStatus: &model.CollectionStatus{ActiveCollections: 1, TodayComments: 1234567},
			Stats: model.SystemStats{
				TotalChannels:  2,
				ActiveChannels: 1,
				TotalStreams:   2,
				ActiveStreams:  2,
				TotalComments:  1234567,
			},
		},
		Generation:  3,
		LastUpdated: "2025/3/4 14:06:07",
	}
}
