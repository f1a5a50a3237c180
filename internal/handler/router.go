package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/hitoshi/chatdash/internal/middleware"
	"github.com/hitoshi/chatdash/internal/navigation"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 画面
	Renderer  *Renderer
	Dashboard Dashboard
	Channels  ChannelService
	Streams   StreamReader

	// WebSocketによる更新通知
	Live http.Handler

	// Prometheusメトリクス
	Metrics http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → RateLimit(General) → CSRF
//
// 変更系のルートにはRateLimit(Mutation)を追加し、/api にはCORSを追加する。
// 一致するルートがないGETはパスから表示状態を導出して描画する（未知のパスは概要画面）。
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	pageHandler := NewPageHandler(deps.Dashboard, deps.Streams, deps.Renderer, deps.Logger)
	channelHandler := NewChannelHandler(deps.Dashboard, deps.Channels, deps.Renderer, deps.Logger)
	apiHandler := NewAPIHandler(deps.Dashboard, deps.Logger)
	csrf := middleware.NewCSRFMiddleware(deps.CSRF)

	// 未定義のパスはパスから導出した画面を表示する
	r.NotFound(deps.RateLimiter.GeneralMiddleware()(csrf(locationHandler(pageHandler, channelHandler))).ServeHTTP)

	// --- レート制限不要のルート ---
	r.Get("/health", Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Handle("/static/*", StaticHandler())

	// --- レート制限対象のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// WebSocket（受信専用のためCSRF対象外）
		if deps.Live != nil {
			r.Method(http.MethodGet, "/ws", deps.Live)
		}

		r.Group(func(r chi.Router) {
			r.Use(csrf)
			mutation := deps.RateLimiter.MutationMiddleware()

			// 画面
			r.Get("/", pageHandler.Overview)
			r.Get("/dashboard", pageHandler.Overview)
			r.Get("/streams", pageHandler.Streams)
			r.Get("/streams/{id}", pageHandler.StreamDetail)
			r.With(mutation).Post("/refresh", pageHandler.Refresh)

			// チャンネル管理
			r.Route("/channels", func(r chi.Router) {
				r.Get("/", channelHandler.List)
				r.With(mutation).Post("/", channelHandler.Add)
				r.With(mutation).Post("/{id}/toggle", channelHandler.Toggle)
				r.With(mutation).Post("/{id}/stop", channelHandler.Stop)
			})

			// JSON API
			r.Route("/api", func(r chi.Router) {
				r.Use(cors.New(cors.Options{
					AllowedOrigins:   []string{deps.CORSAllowedOrigin},
					AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
					AllowedHeaders:   []string{"Content-Type", middleware.CSRFHeaderName, middleware.RequestIDHeader},
					AllowCredentials: true,
				}).Handler)

				r.Get("/snapshot", apiHandler.Snapshot)
				r.Get("/csrf-token", middleware.NewCSRFTokenHandler().ServeHTTP)
				r.With(mutation).Post("/refresh", apiHandler.Refresh)
			})
		})
	})

	return r
}

// locationHandler はルートに一致しないGETリクエストを、パスから導出した表示状態の画面で処理する。
// 未知のパスは概要画面になる。
func locationHandler(pages *PageHandler, channels *ChannelHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}
		switch navigation.FromPath(r.URL.EscapedPath()).View {
		case navigation.ViewChannels:
			channels.List(w, r)
		case navigation.ViewStreams:
			pages.Streams(w, r)
		case navigation.ViewStreamDetail:
			pages.StreamDetail(w, r)
		default:
			pages.Overview(w, r)
		}
	})
}

// Health は死活監視用のエンドポイント。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
