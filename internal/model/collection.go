package model

import "time"

// CollectionStatus はコメント収集タスクの実行状況のスナップショット。
// ポーリングのたびに丸ごと置き換え、差分マージはしない。
type CollectionStatus struct {
	ActiveCollections  int          `json:"active_collections"`
	RunningVideoIDs    []string     `json:"running_video_ids"`
	TodayComments      int64        `json:"today_comments"`
	LastCollectionTime *string      `json:"last_collection_time"`
	TaskDetails        []TaskDetail `json:"task_details"`
	Timestamp          string       `json:"timestamp"`
}

// TaskDetail はコメント収集タスク1件の詳細。
type TaskDetail struct {
	VideoID    string `json:"video_id"`
	TaskStatus string `json:"task_status"`
	StartedAt  string `json:"started_at"`
	ChannelID  string `json:"channel_id,omitempty"`
	TaskARN    string `json:"task_arn,omitempty"`
}

// SystemStats はダッシュボード表示用の集計値。
// チャンネル・配信・収集状況から毎回導出し、直接は変更しない。
type SystemStats struct {
	TotalChannels  int       `json:"totalChannels"`
	ActiveChannels int       `json:"activeChannels"`
	TotalStreams   int       `json:"totalStreams"`
	ActiveStreams  int       `json:"activeStreams"`
	TotalComments  int64     `json:"totalComments"`
	LastUpdate     time.Time `json:"lastUpdate"`
}
