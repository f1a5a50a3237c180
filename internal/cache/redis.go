// Package cache はRedisを使ったスナップショットのミラーを提供する。
// ミラーは任意機能で、プロセス外（statusコマンドや他インスタンス）から直近のスナップショットを参照するために使う。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis はgo-redisクライアントにJSONの読み書きとヘルスチェックを加えたラッパー。
type Redis struct {
	client *redis.Client
}

// New はRedis URL（例: redis://host:6379/0）をパースしてクライアントを生成する。
// 接続確認はPingで行う。
func New(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLのパースに失敗しました: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Ping はRedisへの接続を確認する。
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (r *Redis) Close() error {
	return r.client.Close()
}

// Get はキーの値をJSONとしてデコードして返す。
// キーが存在しない場合はredis.Nilを返す。
func Get[T any](ctx context.Context, r *Redis, key string) (T, error) {
	var zero T
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("キャッシュ %s のデコードに失敗しました: %w", key, err)
	}
	return v, nil
}

// Set は値をJSONにエンコードし、TTL付きで保存する。
func Set(ctx context.Context, r *Redis, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("キャッシュ %s のエンコードに失敗しました: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}
