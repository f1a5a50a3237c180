// Package live はダッシュボード更新をブラウザへプッシュするWebSocketハブを提供する。
//
// 更新が完了するたびにHubが接続中の全クライアントへイベントを配信し、
// 画面側はイベントを受けて表示中のページを再読み込みする。
// クライアントからのメッセージは受け付けない（受信専用）。
package live

import "github.com/hitoshi/chatdash/internal/dashboard"

// Event はWebSocketで送信するメッセージ。
// Seqは送信ごとに増加し、クライアントは欠番で取りこぼしを検出できる。
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// OpSnapshot はダッシュボードの更新完了を通知するイベント種別。
const OpSnapshot = "snapshot"

// SnapshotPayload はOpSnapshotのペイロード。
type SnapshotPayload struct {
	Generation  uint64 `json:"generation"`
	LastUpdated string `json:"last_updated"`
	Error       string `json:"error,omitempty"`
}

// SnapshotEvent はダッシュボードの状態から更新通知イベントを生成する。
func SnapshotEvent(v dashboard.View) Event {
	return Event{
		Op: OpSnapshot,
		Data: SnapshotPayload{
			Generation:  v.Generation,
			LastUpdated: v.LastUpdated,
			Error:       v.Err,
		},
	}
}
