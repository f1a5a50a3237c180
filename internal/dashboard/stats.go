package dashboard

import (
	"time"

	"github.com/hitoshi/chatdash/internal/model"
)

// DeriveStats はチャンネル・配信・収集状況から統計情報を導出する。
// アクティブ配信数はlive/upcomingのみを数え、総コメント数は収集状況の当日コメント数とする。
func DeriveStats(channels []model.Channel, streams []model.Stream, status *model.CollectionStatus, now time.Time) model.SystemStats {
	stats := model.SystemStats{
		TotalChannels:  len(channels),
		ActiveChannels: model.CountActiveChannels(channels),
		TotalStreams:   len(streams),
		ActiveStreams:  model.CountActiveStreams(streams),
		LastUpdate:     now,
	}
	if status != nil {
		stats.TotalComments = status.TodayComments
	}
	return stats
}
