package model

// Channel は監視対象のYouTubeチャンネルを表す。
// 同一性はChannelIDで判定し、一意性はゲートウェイ側が保証する。
type Channel struct {
	ChannelID       string `json:"channel_id"`
	ChannelName     string `json:"channel_name"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at,omitempty"`
	SubscriberCount *int64 `json:"subscriber_count,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

// ChannelMutation はチャンネル更新・削除APIのレスポンスエンベロープ。
type ChannelMutation struct {
	Message string  `json:"message"`
	Channel Channel `json:"channel"`
}

// ChannelURL はチャンネルのYouTubeページURLを返す。
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}

// CountActiveChannels は監視中のチャンネル数を返す。
func CountActiveChannels(channels []Channel) int {
	n := 0
	for _, ch := range channels {
		if ch.IsActive {
			n++
		}
	}
	return n
}
