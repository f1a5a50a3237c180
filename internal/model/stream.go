package model

// StreamStatus はライブ配信のステータスを表す。
// ゲートウェイが報告した値をそのまま信頼し、クライアント側で遷移の検証はしない。
type StreamStatus string

const (
	// StreamStatusLive は配信中。
	StreamStatusLive StreamStatus = "live"
	// StreamStatusUpcoming は配信予約済み。
	StreamStatusUpcoming StreamStatus = "upcoming"
	// StreamStatusEnded は配信終了。
	StreamStatusEnded StreamStatus = "ended"
	// StreamStatusDetected は新規検出済み（ステータス未確定）。
	StreamStatusDetected StreamStatus = "detected"
	// StreamStatusNone はステータス情報なし。
	StreamStatusNone StreamStatus = "none"
)

// MonitoredStreamStatuses はダッシュボードが取得対象とするステータスの一覧。
var MonitoredStreamStatuses = []StreamStatus{
	StreamStatusLive,
	StreamStatusUpcoming,
	StreamStatusDetected,
}

// IsActive は配信中または配信予約済みの場合にtrueを返す。
// 統計情報のアクティブ配信数はこの判定で数える。
func (s StreamStatus) IsActive() bool {
	return s == StreamStatusLive || s == StreamStatusUpcoming
}

// IsMonitored はダッシュボードの取得対象ステータスの場合にtrueを返す。
func (s StreamStatus) IsMonitored() bool {
	return s.IsActive() || s == StreamStatusDetected
}

// Label は画面表示用のラベルを返す。
func (s StreamStatus) Label() string {
	switch s {
	case StreamStatusLive:
		return "🔴 LIVE"
	case StreamStatusUpcoming:
		return "⏰ 予約配信"
	case StreamStatusEnded:
		return "⏹ 終了"
	case StreamStatusDetected:
		return "🆕 検出済み"
	default:
		return "-"
	}
}

// Stream はライブ配信を表す。
type Stream struct {
	VideoID            string       `json:"video_id"`
	ChannelID          string       `json:"channel_id"`
	Title              string       `json:"title"`
	Status             StreamStatus `json:"status"`
	CreatedAt          string       `json:"created_at"`
	UpdatedAt          string       `json:"updated_at,omitempty"`
	ScheduledStartTime string       `json:"scheduled_start_time,omitempty"`
	ActualStartTime    string       `json:"actual_start_time,omitempty"`
	ActualEndTime      string       `json:"actual_end_time,omitempty"`
	Description        string       `json:"description,omitempty"`
	PublishedAt        string       `json:"published_at,omitempty"`
}

// CountActiveStreams はステータスがlive/upcomingの配信数を返す。
func CountActiveStreams(streams []Stream) int {
	n := 0
	for _, s := range streams {
		if s.Status.IsActive() {
			n++
		}
	}
	return n
}

// Comment はライブチャットのコメントを表す。
type Comment struct {
	CommentID       string `json:"comment_id"`
	VideoID         string `json:"video_id"`
	AuthorName      string `json:"author_name"`
	MessageText     string `json:"message_text"`
	Timestamp       string `json:"timestamp"`
	AuthorChannelID string `json:"author_channel_id,omitempty"`
}

// CommentPage はコメント一覧APIのページ単位のレスポンス。
type CommentPage struct {
	Comments []Comment `json:"comments"`
	Count    int       `json:"count"`
	Total    int       `json:"total"`
}
