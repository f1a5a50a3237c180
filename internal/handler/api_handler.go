package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/middleware"
	"github.com/hitoshi/chatdash/internal/model"
)

// APIHandler はダッシュボード状態のJSON APIハンドラー。
type APIHandler struct {
	dashboard Dashboard
	logger    *slog.Logger
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(dash Dashboard, logger *slog.Logger) *APIHandler {
	return &APIHandler{dashboard: dash, logger: logger}
}

// Snapshot はコミット済みのダッシュボード状態を返す。
// GET /api/snapshot
func (h *APIHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.View())
}

// Refresh はダッシュボードを手動更新する。
// 成功時は更新後の状態、失敗時は502と統一エラーを返す。
// POST /api/refresh
func (h *APIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.Refresh(context.WithoutCancel(r.Context())); err != nil {
		if errors.Is(err, dashboard.ErrClosed) {
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
				Code:     "SHUTTING_DOWN",
				Message:  "サーバーを停止しています。",
				Category: "system",
				Action:   "しばらく待ってから再度お試しください。",
			})
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewGatewayFailedError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.dashboard.View())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
