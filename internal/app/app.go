// Package app はプロセス全体の初期化と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/chatdash/internal/cache"
	"github.com/hitoshi/chatdash/internal/channel"
	"github.com/hitoshi/chatdash/internal/config"
	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/gateway"
	"github.com/hitoshi/chatdash/internal/handler"
	"github.com/hitoshi/chatdash/internal/live"
	"github.com/hitoshi/chatdash/internal/logger"
	"github.com/hitoshi/chatdash/internal/metrics"
	"github.com/hitoshi/chatdash/internal/middleware"
	"github.com/hitoshi/chatdash/internal/security"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 構造化ログをセットアップしてから設定を読み込む。
// ゲートウェイの接続設定が未設定の場合は項目ごとにエラーログを出力し、起動は継続する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	for _, key := range cfg.MissingGatewaySettings() {
		slog.Error("ゲートウェイの接続設定が未設定です", slog.String("key", key))
	}

	return cfg, nil
}

// newGatewayClient は設定からゲートウェイクライアントを生成する。
func newGatewayClient(cfg *config.Config, logger *slog.Logger, recorder gateway.RequestRecorder) *gateway.Client {
	return gateway.NewClient(gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		APIKey:     cfg.GatewayAPIKey,
		HTTPClient: &http.Client{Timeout: cfg.GatewayTimeout},
		Logger:     logger,
		Recorder:   recorder,
	})
}

// server はserveモードで起動するコンポーネント一式。
type server struct {
	handler      http.Handler
	synchronizer *dashboard.Synchronizer
	hub          *live.Hub
	limiter      *middleware.RateLimiter
	redis        *cache.Redis
}

// newServer は全依存関係をワイヤリングする。
// REDIS_URLが設定されている場合はスナップショットのミラーを有効にする。
// Redisに接続できなくても起動は継続する（ミラーの失敗はダッシュボードに影響しない）。
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*server, error) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. ゲートウェイクライアント
	gw := newGatewayClient(cfg, logger, collector)

	// 3. WebSocketハブ
	hub := live.NewHub(logger, cfg.CORSAllowedOrigin)

	// 4. ダッシュボード状態
	opts := []dashboard.Option{
		dashboard.WithRecorder(collector),
		dashboard.WithLocation(cfg.Location()),
		dashboard.WithCommitHook(func(v dashboard.View) {
			hub.Broadcast(live.SnapshotEvent(v))
		}),
	}

	var rdb *cache.Redis
	if cfg.RedisURL != "" {
		r, err := cache.New(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := r.Ping(pingCtx); err != nil {
			logger.Warn("Redisに接続できません。スナップショットのミラーは失敗し続けます",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("Redisに接続しました")
		}
		cancel()

		mirror := cache.NewSnapshotMirror(r, cache.SnapshotTTL(cfg.PollInterval), logger)
		opts = append(opts, dashboard.WithCommitHook(mirror.PublishHook()))
		rdb = r
	}

	syncer := dashboard.NewSynchronizer(gw, logger, opts...)

	// 5. チャンネル管理
	manager := channel.NewManager(gw, syncer, syncer, logger)

	// 6. 画面
	renderer, err := handler.NewRenderer(handler.AppInfo{
		Environment: cfg.Environment,
		Version:     cfg.Version,
		BuildTime:   cfg.BuildTime,
		GatewayURL:  gw.BaseURL(),
	}, security.NewContentSanitizer(), cfg.Location(), logger)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, err
	}

	// 7. ルーター（設定はreq/min単位）
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     middleware.PerMinute(cfg.RateLimitGeneral),
		GeneralBurst:    cfg.RateLimitGeneral,
		MutationRate:    middleware.PerMinute(cfg.RateLimitMutation),
		MutationBurst:   cfg.RateLimitMutation,
		CleanupInterval: middleware.DefaultRateLimiterConfig().CleanupInterval,
	})

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF:              middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		RateLimiter:       limiter,
		Renderer:          renderer,
		Dashboard:         syncer,
		Channels:          manager,
		Streams:           gw,
		Live:              hub,
		Metrics:           metrics.Handler(reg),
	})

	return &server{
		handler:      router,
		synchronizer: syncer,
		hub:          hub,
		limiter:      limiter,
		redis:        rdb,
	}, nil
}

// close はサーバー停止後の後始末を行う。実行中の更新結果は破棄される。
func (s *server) close() {
	s.synchronizer.Close()
	s.limiter.Stop()
	if s.redis != nil {
		s.redis.Close()
	}
}

// RunServe はHTTPサーバーと自動更新を起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func RunServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cfg, logger, reg)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer srv.close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go srv.hub.Run(ctx)
	go srv.synchronizer.Start(ctx, cfg.PollInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTPサーバーを起動します",
			slog.String("addr", httpServer.Addr),
			slog.String("environment", cfg.Environment),
			slog.String("version", cfg.Version),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("HTTPサーバーを停止します...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTPサーバーを停止しました")
	return nil
}

// RunHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、200以外はエラーとする。
func RunHealthcheck(ctx context.Context, port string) error {
	if port == "" {
		port = os.Getenv("SERVER_PORT")
	}
	if port == "" {
		port = "8080"
	}
	return checkHealth(ctx, fmt.Sprintf("http://localhost:%s/health", port))
}

func checkHealth(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
