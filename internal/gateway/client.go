// Package gateway はYouTubeライブチャット収集システムのAPIゲートウェイクライアントを提供する。
// チャンネル管理・配信一覧・コメント・収集状況の各リソースへのアクセスを含む。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/chatdash/internal/model"
)

// Error はゲートウェイが2xx以外のステータスを返した場合のエラー。
// ステータスコード・ステータス文言・レスポンスボディをそのまま保持する。
type Error struct {
	StatusCode int
	Status     string
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("API Error: %d %s - %s", e.StatusCode, e.Status, e.Body)
}

// RequestRecorder はゲートウェイ呼び出しの結果を記録するインターフェース。
// statusCodeはトランスポートエラー時に0となる。
type RequestRecorder interface {
	RecordGatewayRequest(endpoint string, statusCode int, duration time.Duration)
}

// Config はClientの生成パラメータ。
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Recorder   RequestRecorder
}

// Client はAPIゲートウェイのクライアント。
// 全リクエストは1回だけ試行し、リトライや重複排除は行わない。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	recorder   RequestRecorder
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
		recorder:   cfg.Recorder,
	}
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// channelsEnvelope はGET /channelsのレスポンス形式。
type channelsEnvelope struct {
	Channels []model.Channel `json:"channels"`
	Count    int             `json:"count"`
}

// streamsEnvelope はGET /streamsのレスポンス形式。
type streamsEnvelope struct {
	Streams []model.Stream `json:"streams"`
	Count   int            `json:"count"`
}

// ListChannels は登録済みチャンネルの一覧を取得する。
func (c *Client) ListChannels(ctx context.Context) ([]model.Channel, error) {
	var env channelsEnvelope
	if err := c.do(ctx, "channels", http.MethodGet, "/channels", nil, &env); err != nil {
		return nil, err
	}
	if env.Channels == nil {
		return []model.Channel{}, nil
	}
	return env.Channels, nil
}

// AddChannel はチャンネルを監視対象に登録する。
func (c *Client) AddChannel(ctx context.Context, channelID string) (*model.Channel, error) {
	body := map[string]string{"channel_id": channelID}
	var ch model.Channel
	if err := c.do(ctx, "channels", http.MethodPost, "/channels", body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpdateChannelStatus はチャンネルの監視状態を切り替える。
func (c *Client) UpdateChannelStatus(ctx context.Context, channelID string, active bool) (*model.Channel, error) {
	body := map[string]bool{"is_active": active}
	var mut model.ChannelMutation
	if err := c.do(ctx, "channel", http.MethodPut, "/channels/"+url.PathEscape(channelID), body, &mut); err != nil {
		return nil, err
	}
	return &mut.Channel, nil
}

// DeleteChannel はチャンネルの監視を停止する（履歴は保持される）。
func (c *Client) DeleteChannel(ctx context.Context, channelID string) (*model.ChannelMutation, error) {
	var mut model.ChannelMutation
	if err := c.do(ctx, "channel", http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, &mut); err != nil {
		return nil, err
	}
	return &mut, nil
}

// StreamFilter は配信一覧の絞り込み条件。未指定の項目はクエリに含めない。
type StreamFilter struct {
	Statuses  []model.StreamStatus
	ChannelID string
}

// ListStreams は条件に一致する配信の一覧を取得する。
func (c *Client) ListStreams(ctx context.Context, filter StreamFilter) ([]model.Stream, error) {
	q := url.Values{}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q.Set("status", strings.Join(statuses, ","))
	}
	if filter.ChannelID != "" {
		q.Set("channel_id", filter.ChannelID)
	}
	path := "/streams"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var env streamsEnvelope
	if err := c.do(ctx, "streams", http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Streams == nil {
		return []model.Stream{}, nil
	}
	return env.Streams, nil
}

// ListActiveStreams は配信中・予約済み・検出済みの配信を取得する。
func (c *Client) ListActiveStreams(ctx context.Context) ([]model.Stream, error) {
	return c.ListStreams(ctx, StreamFilter{Statuses: model.MonitoredStreamStatuses})
}

// GetStream は配信1件の詳細を取得する。
func (c *Client) GetStream(ctx context.Context, videoID string) (*model.Stream, error) {
	var s model.Stream
	if err := c.do(ctx, "stream", http.MethodGet, "/streams/"+url.PathEscape(videoID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CommentQuery はコメント一覧のページング条件。0以下の値は送信しない。
type CommentQuery struct {
	Limit  int
	Offset int
}

// ListComments は配信のコメントを取得する。
func (c *Client) ListComments(ctx context.Context, videoID string, query CommentQuery) (*model.CommentPage, error) {
	q := url.Values{}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	path := "/comments/" + url.PathEscape(videoID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page model.CommentPage
	if err := c.do(ctx, "comments", http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	if page.Comments == nil {
		page.Comments = []model.Comment{}
	}
	return &page, nil
}

// GetCollectionStatus はコメント収集タスクの実行状況を取得する。
func (c *Client) GetCollectionStatus(ctx context.Context) (*model.CollectionStatus, error) {
	var st model.CollectionStatus
	if err := c.do(ctx, "collection_status", http.MethodGet, "/collection-status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// do はリクエストを1回送信し、2xxの場合にレスポンスをoutへデコードする。
// endpointはメトリクスとログ用のラベル。
func (c *Client) do(ctx context.Context, endpoint, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(endpoint, 0, time.Since(start))
		c.logger.Error("APIゲートウェイの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.record(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("APIゲートウェイがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return &Error{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Body:       string(body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("APIゲートウェイのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

func (c *Client) record(endpoint string, statusCode int, d time.Duration) {
	if c.recorder != nil {
		c.recorder.RecordGatewayRequest(endpoint, statusCode, d)
	}
}

// statusText は "404 Not Found" 形式のStatusからステータス文言部分を取り出す。
func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if s := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}
