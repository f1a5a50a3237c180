package handler

import (
	"errors"
	"net/http"

	"github.com/hitoshi/chatdash/internal/model"
)

// toAPIError はサービス層のエラーを統一エラーに変換する。
// APIError以外（ゲートウェイの失敗など）はGATEWAY_FAILEDとして扱い、メッセージはそのまま表示する。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewGatewayFailedError(err.Error())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeChannelIDRequired,
		model.ErrCodeChannelIDInvalidFormat,
		model.ErrCodeChannelAlreadyRegistered:
		return http.StatusUnprocessableEntity
	case model.ErrCodeConfirmationRequired, model.ErrCodeChannelBusy:
		return http.StatusConflict
	case model.ErrCodeChannelNotFound, model.ErrCodeStreamNotFound:
		return http.StatusNotFound
	case model.ErrCodeGatewayFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
