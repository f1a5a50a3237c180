package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig は設定ファイル（YAML）の形式。未指定の項目は既定値のまま。
type fileConfig struct {
	GatewayBaseURL    string `yaml:"gateway_base_url"`
	GatewayAPIKey     string `yaml:"gateway_api_key"`
	GatewayTimeout    string `yaml:"gateway_timeout"`
	Environment       string `yaml:"environment"`
	Version           string `yaml:"version"`
	BuildTime         string `yaml:"build_time"`
	DisplayTimezone   string `yaml:"display_timezone"`
	ServerPort        string `yaml:"server_port"`
	PollInterval      string `yaml:"poll_interval"`
	RedisURL          string `yaml:"redis_url"`
	CORSAllowedOrigin string `yaml:"cors_allowed_origin"`
	CookieSecure      *bool  `yaml:"cookie_secure"`
	RateLimitGeneral  int    `yaml:"rate_limit_general"`
	RateLimitMutation int    `yaml:"rate_limit_mutation"`
}

// LoadFile はYAMLファイルから設定を読み込む。環境変数は参照しない。
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("設定ファイルのパースに失敗しました: %w", err)
	}

	setString(&cfg.GatewayBaseURL, f.GatewayBaseURL)
	setString(&cfg.GatewayAPIKey, f.GatewayAPIKey)
	setString(&cfg.Environment, f.Environment)
	setString(&cfg.Version, f.Version)
	setString(&cfg.BuildTime, f.BuildTime)
	setString(&cfg.DisplayTimezone, f.DisplayTimezone)
	setString(&cfg.ServerPort, f.ServerPort)
	setString(&cfg.RedisURL, f.RedisURL)
	setString(&cfg.CORSAllowedOrigin, f.CORSAllowedOrigin)

	if err := setDuration(&cfg.GatewayTimeout, "gateway_timeout", f.GatewayTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.PollInterval, "poll_interval", f.PollInterval); err != nil {
		return err
	}
	if f.CookieSecure != nil {
		cfg.CookieSecure = *f.CookieSecure
	}
	if f.RateLimitGeneral > 0 {
		cfg.RateLimitGeneral = f.RateLimitGeneral
	}
	if f.RateLimitMutation > 0 {
		cfg.RateLimitMutation = f.RateLimitMutation
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("設定ファイルの %s が不正です: %q", key, v)
	}
	*dst = d
	return nil
}
