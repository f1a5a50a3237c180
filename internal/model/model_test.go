package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// --- StreamStatus ---

func TestStreamStatus_IsActive(t *testing.T) {
	tests := []struct {
		status StreamStatus
		want   bool
	}{
		{StreamStatusLive, true},
		{StreamStatusUpcoming, true},
		{StreamStatusDetected, false},
		{StreamStatusEnded, false},
		{StreamStatusNone, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsActive(); got != tt.want {
			t.Errorf("%s.IsActive() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStreamStatus_IsMonitored(t *testing.T) {
	for _, s := range MonitoredStreamStatuses {
		if !s.IsMonitored() {
			t.Errorf("%s.IsMonitored() = false, want true", s)
		}
	}
	if StreamStatusEnded.IsMonitored() {
		t.Error("ended.IsMonitored() = true, want false")
	}
}

func TestCountActiveStreams(t *testing.T) {
	streams := []Stream{
		{VideoID: "a", Status: StreamStatusLive},
		{VideoID: "b", Status: StreamStatusUpcoming},
		{VideoID: "c", Status: StreamStatusDetected},
	}
	if got := CountActiveStreams(streams); got != 2 {
		t.Errorf("CountActiveStreams = %d, want 2", got)
	}
	if got := CountActiveStreams(nil); got != 0 {
		t.Errorf("CountActiveStreams(nil) = %d, want 0", got)
	}
}

func TestCountActiveChannels(t *testing.T) {
	channels := []Channel{
		{ChannelID: "UC1", IsActive: true},
		{ChannelID: "UC2", IsActive: false},
	}
	if got := CountActiveChannels(channels); got != 1 {
		t.Errorf("CountActiveChannels = %d, want 1", got)
	}
}

// --- 日時整形 ---

func TestFormatDateTime(t *testing.T) {
	tokyo := time.FixedZone("Asia/Tokyo", 9*60*60)
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"RFC3339", "2025-01-02T03:04:05Z", "2025/1/2 12:04:05"},
		{"タイムゾーンなし", "2025-01-02T03:04:05.123456", "2025/1/2 12:04:05"},
		{"パース不能", "not-a-date", "not-a-date"},
		{"空文字", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDateTime(tt.raw, tokyo); got != tt.want {
				t.Errorf("FormatDateTime(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("2025-12-31T20:00:00Z", time.UTC); got != "2025/12/31" {
		t.Errorf("FormatDate = %q, want %q", got, "2025/12/31")
	}
}

// --- APIError ---

func TestAPIError_Error(t *testing.T) {
	err := NewChannelIDRequiredError()
	if got := err.Error(); got != "[CHANNEL_ID_REQUIRED] チャンネルIDを入力してください" {
		t.Errorf("Error() = %q", got)
	}

	var apiErr *APIError
	var wrapped error = err
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As で *APIError を取り出せること")
	}
}

func TestNewInvalidChannelIDFormatError(t *testing.T) {
	err := NewInvalidChannelIDFormatError()
	if err.Category != "validation" {
		t.Errorf("Category = %q, want validation", err.Category)
	}
	if !strings.Contains(err.Message, ExampleChannelID) {
		t.Errorf("Message に入力例が含まれること: %q", err.Message)
	}
}

func TestChannelURL(t *testing.T) {
	if got := ChannelURL("UCabc"); got != "https://www.youtube.com/channel/UCabc" {
		t.Errorf("ChannelURL = %q", got)
	}
}
