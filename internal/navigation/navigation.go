// Package navigation はURLパスとダッシュボードの表示状態を相互に変換する。
// 表示状態は常にパスから導出するため、ブラウザの戻る・進むでも直前のパスの状態が再現される。
package navigation

import (
	"net/url"
	"strings"
)

// View はダッシュボードの表示画面を表す。
type View string

const (
	// ViewOverview は概要画面。
	ViewOverview View = "overview"
	// ViewChannels はチャンネル管理画面。
	ViewChannels View = "channels"
	// ViewStreams は配信一覧画面。
	ViewStreams View = "streams"
	// ViewStreamDetail は配信詳細画面。
	ViewStreamDetail View = "stream-detail"
)

// State はナビゲーション状態。StreamIDはViewStreamDetailの場合のみ意味を持つ。
type State struct {
	View     View
	StreamID string
}

// Overview は概要画面の状態を返す。
func Overview() State { return State{View: ViewOverview} }

// StreamDetail は配信詳細画面の状態を返す。
func StreamDetail(videoID string) State {
	return State{View: ViewStreamDetail, StreamID: videoID}
}

// FromPath はエスケープ済みのURLパスから表示状態を導出する。
// 末尾のスラッシュ1つは無視し、未知のパスは概要画面とする。
func FromPath(escapedPath string) State {
	p := escapedPath
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	switch {
	case p == "" || p == "/" || p == "/dashboard" || strings.HasPrefix(p, "/dashboard/"):
		return Overview()
	case p == "/channels" || strings.HasPrefix(p, "/channels/"):
		return State{View: ViewChannels}
	case p == "/streams":
		return State{View: ViewStreams}
	case strings.HasPrefix(p, "/streams/"):
		rest := strings.TrimPrefix(p, "/streams/")
		id, err := url.PathUnescape(rest)
		if err != nil {
			id = rest
		}
		if id == "" {
			return State{View: ViewStreams}
		}
		return StreamDetail(id)
	default:
		return Overview()
	}
}

// ToPath は表示状態に対応するURLパスを返す。
func ToPath(s State) string {
	switch s.View {
	case ViewChannels:
		return "/channels"
	case ViewStreams:
		return "/streams"
	case ViewStreamDetail:
		if s.StreamID == "" {
			return "/streams"
		}
		return "/streams/" + url.PathEscape(s.StreamID)
	default:
		return "/"
	}
}

// Normalize は任意のパスを表示状態経由で正規化したパスに変換する。
// リダイレクト先のパスを外部入力から受け取る場合に使う。
func Normalize(rawPath string) string {
	u, err := url.Parse(rawPath)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ToPath(Overview())
	}
	return ToPath(FromPath(u.EscapedPath()))
}

// Tab はナビゲーションタブ1つ分のリンク。
type Tab struct {
	Label  string
	Path   string
	Active bool
}

// Tabs はナビゲーションタブの一覧を返す。配信詳細画面では配信タブを選択中とする。
func Tabs(current State) []Tab {
	active := current.View
	if active == ViewStreamDetail {
		active = ViewStreams
	}
	return []Tab{
		{Label: "概要", Path: ToPath(State{View: ViewOverview}), Active: active == ViewOverview},
		{Label: "チャンネル管理", Path: ToPath(State{View: ViewChannels}), Active: active == ViewChannels},
		{Label: "配信一覧", Path: ToPath(State{View: ViewStreams}), Active: active == ViewStreams},
	}
}
