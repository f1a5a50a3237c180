package dashboard

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPollInterval は自動更新の間隔。
const DefaultPollInterval = 30 * time.Second

// Start は起動直後に1回、以後intervalごとに更新を実行する。
// コンテキストがキャンセルされるまで実行を継続する。
// 各回の更新は独立したゴルーチンで実行し、前回の完了を待たない。
func (s *Synchronizer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("自動更新を開始しました", slog.Duration("interval", interval))

	s.refreshAsync(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("自動更新を停止しました")
			return
		case <-ticker.C:
			s.refreshAsync(ctx)
		}
	}
}

// refreshAsync は停止操作で実行中のリクエストが中断されないよう、キャンセルを切り離して更新する。
func (s *Synchronizer) refreshAsync(ctx context.Context) {
	go func() {
		// 失敗はRefresh内でログ出力済み
		_ = s.Refresh(context.WithoutCancel(ctx))
	}()
}
