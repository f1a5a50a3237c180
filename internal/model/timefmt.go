package model

import "time"

// timestampLayouts はゲートウェイが返しうる日時フォーマット。
// タイムゾーンなしのISO 8601はUTCとして解釈する。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp はゲートウェイの日時文字列をパースする。
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDateTime は日時文字列を表示用（例: 2025/1/2 15:04:05）に整形する。
// パースできない場合は元の文字列をそのまま返す。
func FormatDateTime(raw string, loc *time.Location) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006/1/2 15:04:05")
}

// FormatDate は日時文字列を日付のみ（例: 2025/1/2）に整形する。
func FormatDate(raw string, loc *time.Location) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006/1/2")
}
