package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/chatdash/internal/dashboard"
)

// SnapshotKey はスナップショットを保存するキー。
const SnapshotKey = "chatdash:snapshot"

// ErrNoSnapshot はミラーにスナップショットが存在しない場合に返す。
var ErrNoSnapshot = errors.New("cache: no snapshot mirrored")

// publishTimeout はPublishHookでの書き込みに許容する時間。
const publishTimeout = 5 * time.Second

// SnapshotTTL はポーリング間隔からミラーの有効期限を算出する。
// 3回連続で更新できなかった場合に期限切れとなる。
func SnapshotTTL(pollInterval time.Duration) time.Duration {
	return 3 * pollInterval
}

// SnapshotMirror はコミット済みのダッシュボード状態をRedisへ書き出す。
type SnapshotMirror struct {
	redis  *Redis
	ttl    time.Duration
	logger *slog.Logger
}

// NewSnapshotMirror はSnapshotMirrorの新しいインスタンスを生成する。
func NewSnapshotMirror(r *Redis, ttl time.Duration, logger *slog.Logger) *SnapshotMirror {
	return &SnapshotMirror{redis: r, ttl: ttl, logger: logger}
}

// Publish はダッシュボード状態を保存する。一度も更新に成功していない状態は保存しない。
func (m *SnapshotMirror) Publish(ctx context.Context, v dashboard.View) error {
	if !v.HasData() {
		return nil
	}
	if err := Set(ctx, m.redis, SnapshotKey, v, m.ttl); err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました: %w", err)
	}
	return nil
}

// Load は保存済みのダッシュボード状態を読み込む。
func (m *SnapshotMirror) Load(ctx context.Context) (dashboard.View, error) {
	v, err := Get[dashboard.View](ctx, m.redis, SnapshotKey)
	if errors.Is(err, redis.Nil) {
		return dashboard.View{}, ErrNoSnapshot
	}
	if err != nil {
		return dashboard.View{}, fmt.Errorf("スナップショットの読み込みに失敗しました: %w", err)
	}
	return v, nil
}

// PublishHook はSynchronizerのコミットフックとして使う関数を返す。
// 保存の失敗はログに記録するのみで、ダッシュボードの状態には影響しない。
func (m *SnapshotMirror) PublishHook() func(dashboard.View) {
	return func(v dashboard.View) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := m.Publish(ctx, v); err != nil {
			m.logger.Warn("スナップショットのミラーに失敗しました",
				slog.Uint64("generation", v.Generation),
				slog.String("error", err.Error()),
			)
		}
	}
}
