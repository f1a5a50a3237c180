// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ConfigFileEnv は設定ファイル（YAML）のパスを指定する環境変数。
const ConfigFileEnv = "CHATDASH_CONFIG"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Gateway
	GatewayBaseURL string
	GatewayAPIKey  string
	GatewayTimeout time.Duration

	// Display
	Environment     string
	Version         string
	BuildTime       string
	DisplayTimezone string

	// Server
	ServerPort string

	// Dashboard
	PollInterval time.Duration

	// Cache
	RedisURL string

	// CORS
	CORSAllowedOrigin string

	// Cookie
	CookieSecure bool

	// Rate Limit (req/min/client)
	RateLimitGeneral  int
	RateLimitMutation int
}

// defaults は既定値を設定したConfigを返す。
func defaults() *Config {
	return &Config{
		GatewayTimeout:    30 * time.Second,
		Environment:       "dev",
		Version:           "dev",
		DisplayTimezone:   "Asia/Tokyo",
		ServerPort:        "8080",
		PollInterval:      30 * time.Second,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimitGeneral:  120,
		RateLimitMutation: 10,
	}
}

// Load は設定を読み込む。優先順位は 環境変数 > 設定ファイル > 既定値。
// カレントディレクトリに.envがあれば環境変数として読み込む（既存の環境変数は上書きしない）。
// ゲートウェイの接続設定が未設定でもエラーにはせず、MissingGatewaySettingsで確認する。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗しました: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする。
// 数値・期間の値が不正な場合は現在の値を維持する。
func applyEnv(cfg *Config) {
	cfg.GatewayBaseURL = getEnvString("GATEWAY_BASE_URL", cfg.GatewayBaseURL)
	cfg.GatewayAPIKey = getEnvString("GATEWAY_API_KEY", cfg.GatewayAPIKey)
	cfg.GatewayTimeout = getEnvDuration("GATEWAY_TIMEOUT", cfg.GatewayTimeout)
	cfg.Environment = getEnvString("APP_ENVIRONMENT", cfg.Environment)
	cfg.Version = getEnvString("APP_VERSION", cfg.Version)
	cfg.BuildTime = getEnvString("APP_BUILD_TIME", cfg.BuildTime)
	cfg.DisplayTimezone = getEnvString("DISPLAY_TIMEZONE", cfg.DisplayTimezone)
	cfg.ServerPort = getEnvString("SERVER_PORT", cfg.ServerPort)
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.RedisURL = getEnvString("REDIS_URL", cfg.RedisURL)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.CORSAllowedOrigin)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", cfg.RateLimitGeneral)
	cfg.RateLimitMutation = getEnvInt("RATE_LIMIT_MUTATION", cfg.RateLimitMutation)
}

// MissingGatewaySettings は未設定のゲートウェイ接続設定の環境変数名を返す。
func (c *Config) MissingGatewaySettings() []string {
	var missing []string
	if c.GatewayBaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if c.GatewayAPIKey == "" {
		missing = append(missing, "GATEWAY_API_KEY")
	}
	return missing
}

// Location は表示用タイムゾーンを返す。読み込めない場合はJST固定オフセットを返す。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
