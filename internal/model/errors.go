// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, channel, stream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeChannelIDRequired        = "CHANNEL_ID_REQUIRED"
	ErrCodeChannelIDInvalidFormat   = "CHANNEL_ID_INVALID_FORMAT"
	ErrCodeChannelAlreadyRegistered = "CHANNEL_ALREADY_REGISTERED"
	ErrCodeConfirmationRequired     = "CONFIRMATION_REQUIRED"
	ErrCodeChannelBusy              = "CHANNEL_BUSY"
	ErrCodeChannelNotFound          = "CHANNEL_NOT_FOUND"
	ErrCodeStreamNotFound           = "STREAM_NOT_FOUND"
	ErrCodeGatewayFailed            = "GATEWAY_FAILED"
)

// ExampleChannelID は入力例として表示するチャンネルID。
const ExampleChannelID = "UC1CfXB_kRs3C-zaeTG3oGyg"

// NewChannelIDRequiredError はチャンネルID未入力エラーを生成する。
func NewChannelIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelIDRequired,
		Message:  "チャンネルIDを入力してください",
		Category: "validation",
		Action:   "監視したいYouTubeチャンネルのIDを入力してください。",
	}
}

// NewInvalidChannelIDFormatError はチャンネルID形式不正エラーを生成する。
func NewInvalidChannelIDFormatError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelIDInvalidFormat,
		Message:  fmt.Sprintf("チャンネルIDの形式が正しくありません (例: %s)", ExampleChannelID),
		Category: "validation",
		Action:   "UCで始まる24文字のチャンネルIDを入力してください。",
	}
}

// NewChannelAlreadyRegisteredError は登録済みチャンネルの重複登録エラーを生成する。
func NewChannelAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelAlreadyRegistered,
		Message:  "このチャンネルは既に登録されています",
		Category: "validation",
		Action:   "チャンネル一覧から該当チャンネルを確認してください。",
	}
}

// NewConfirmationRequiredError は監視停止に確認が必要な場合のエラーを生成する。
func NewConfirmationRequiredError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  fmt.Sprintf("チャンネル %s の監視を停止するには確認が必要です。", channelID),
		Category: "channel",
		Action:   "確認画面で「停止する」を選択してください。",
	}
}

// NewChannelBusyError は同一チャンネルへの操作が処理中の場合のエラーを生成する。
func NewChannelBusyError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelBusy,
		Message:  fmt.Sprintf("チャンネル %s は現在更新中です。", channelID),
		Category: "channel",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewChannelNotFoundError は読み込み済み一覧にチャンネルがない場合のエラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "channel",
		Action:   "画面を更新してから再度お試しください。",
	}
}

// NewStreamNotFoundError は配信未検出エラーを生成する。
func NewStreamNotFoundError(videoID string) *APIError {
	return &APIError{
		Code:     ErrCodeStreamNotFound,
		Message:  fmt.Sprintf("指定された配信が見つかりません: %s", videoID),
		Category: "stream",
		Action:   "配信一覧から配信を選択してください。",
	}
}

// NewGatewayFailedError はゲートウェイ呼び出し失敗エラーを生成する。
func NewGatewayFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGatewayFailed,
		Message:  reason,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
