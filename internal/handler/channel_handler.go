package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/chatdash/internal/channel"
	"github.com/hitoshi/chatdash/internal/model"
)

// ChannelService はチャンネル管理ハンドラーが必要とするサービスインターフェース。
type ChannelService interface {
	// Add はチャンネルIDを検証して監視対象に追加する。
	Add(ctx context.Context, raw string) (*model.Channel, error)
	// Toggle は監視状態を反転する。停止にはconfirmedが必要。
	Toggle(ctx context.Context, channelID string, confirmed bool) (*model.Channel, error)
	// Stop は監視を停止して一覧から除去する。
	Stop(ctx context.Context, channelID string, confirmed bool) (*model.ChannelMutation, error)
	// Find は読み込み済み一覧からチャンネルを検索する。
	Find(channelID string) (model.Channel, bool)
	// BusyIDs は更新中のチャンネルIDを返す。
	BusyIDs() []string
}

// ChannelHandler はチャンネル管理画面のHTTPハンドラー。
type ChannelHandler struct {
	dashboard Dashboard
	service   ChannelService
	renderer  *Renderer
	logger    *slog.Logger
}

// NewChannelHandler はChannelHandlerを生成する。
func NewChannelHandler(dash Dashboard, service ChannelService, renderer *Renderer, logger *slog.Logger) *ChannelHandler {
	return &ChannelHandler{
		dashboard: dash,
		service:   service,
		renderer:  renderer,
		logger:    logger,
	}
}

// channelForm はチャンネル追加フォームの入力値とエラー。
type channelForm struct {
	ChannelID string
	Error     *model.APIError
}

type channelsContent struct {
	Channels      []model.Channel
	Busy          map[string]bool
	Total         int
	Active        int
	Stopped       int
	Form          channelForm
	Notice        string
	Error         *model.APIError
	ExampleID     string
	ChannelIDSize int
}

type confirmContent struct {
	Channel model.Channel
	Message string
	Action  string
	Submit  string
}

// List はチャンネル管理画面を表示する。
// GET /channels
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, http.StatusOK, channelForm{}, nil, noticeFromQuery(r.URL.Query()))
}

// Add はフォームから入力されたチャンネルを追加する。
// 検証エラーは入力値を保持したまま同じ画面に表示する。
// POST /channels
func (h *ChannelHandler) Add(w http.ResponseWriter, r *http.Request) {
	raw := r.PostFormValue("channel_id")

	ch, err := h.service.Add(r.Context(), raw)
	if err != nil {
		apiErr := toAPIError(err)
		h.renderList(w, r, mapAPIErrorToHTTPStatus(apiErr), channelForm{ChannelID: raw, Error: apiErr}, nil, "")
		return
	}

	http.Redirect(w, r, "/channels?added="+url.QueryEscape(ch.ChannelID), http.StatusSeeOther)
}

// Toggle は監視状態を切り替える。
// 監視停止で確認がない場合は確認画面を表示する。
// POST /channels/{id}/toggle
func (h *ChannelHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := channelIDParam(r)
	confirmed := r.PostFormValue("confirm") == "yes"

	ch, err := h.service.Toggle(r.Context(), id, confirmed)
	if err != nil {
		h.handleMutationError(w, r, id, "toggle", "⏸️ 監視停止", err)
		return
	}

	h.logger.Info("監視状態を切り替えました",
		slog.String("channel_id", id),
		slog.Bool("is_active", ch.IsActive),
	)
	http.Redirect(w, r, "/channels?updated="+url.QueryEscape(id), http.StatusSeeOther)
}

// Stop は監視を停止して一覧から除去する。
// POST /channels/{id}/stop
func (h *ChannelHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := channelIDParam(r)
	confirmed := r.PostFormValue("confirm") == "yes"

	if _, err := h.service.Stop(r.Context(), id, confirmed); err != nil {
		h.handleMutationError(w, r, id, "stop", "🗑 一覧から除去", err)
		return
	}

	http.Redirect(w, r, "/channels?stopped="+url.QueryEscape(id), http.StatusSeeOther)
}

// handleMutationError は変更操作のエラーを画面に反映する。
// 確認が必要な場合は確認画面、それ以外は管理画面にエラーを表示する。
func (h *ChannelHandler) handleMutationError(w http.ResponseWriter, r *http.Request, id, action, submit string, err error) {
	apiErr := toAPIError(err)
	if apiErr.Code == model.ErrCodeConfirmationRequired {
		ch, ok := h.service.Find(id)
		if !ok {
			ch = model.Channel{ChannelID: id}
		}
		h.renderer.render(w, http.StatusOK, pageConfirm, h.renderer.newPage(r, "確認", h.dashboard.View(), confirmContent{
			Channel: ch,
			Message: channel.ConfirmationMessage(ch),
			Action:  "/channels/" + url.PathEscape(id) + "/" + action,
			Submit:  submit,
		}))
		return
	}

	h.renderList(w, r, mapAPIErrorToHTTPStatus(apiErr), channelForm{}, apiErr, "")
}

func (h *ChannelHandler) renderList(w http.ResponseWriter, r *http.Request, status int, form channelForm, apiErr *model.APIError, notice string) {
	view := h.dashboard.View()

	busy := make(map[string]bool)
	for _, id := range h.service.BusyIDs() {
		busy[id] = true
	}
	active := model.CountActiveChannels(view.Channels)

	h.renderer.render(w, status, pageChannels, h.renderer.newPage(r, "チャンネル管理", view, channelsContent{
		Channels:      view.Channels,
		Busy:          busy,
		Total:         len(view.Channels),
		Active:        active,
		Stopped:       len(view.Channels) - active,
		Form:          form,
		Notice:        notice,
		Error:         apiErr,
		ExampleID:     model.ExampleChannelID,
		ChannelIDSize: len(model.ExampleChannelID),
	}))
}

// channelIDParam はパスのチャンネルIDをアンエスケープして返す。
// chiはRawPathでルーティングするため、URLParamはエスケープされたままの値を返す。
func channelIDParam(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return id
}

// noticeFromQuery は変更成功後のリダイレクトに付与したクエリから通知文を生成する。
func noticeFromQuery(q url.Values) string {
	switch {
	case q.Get("added") != "":
		return fmt.Sprintf("✅ チャンネル %s を追加しました", q.Get("added"))
	case q.Get("updated") != "":
		return fmt.Sprintf("✅ チャンネル %s の監視状態を変更しました", q.Get("updated"))
	case q.Get("stopped") != "":
		return fmt.Sprintf("✅ チャンネル %s を一覧から除去しました", q.Get("stopped"))
	default:
		return ""
	}
}
