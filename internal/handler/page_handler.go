package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/gateway"
	"github.com/hitoshi/chatdash/internal/model"
	"github.com/hitoshi/chatdash/internal/navigation"
)

// 概要画面に表示するアクティブ配信の最大件数
const overviewStreamLimit = 6

// CommentPageSize は配信詳細画面で1ページに表示するコメント数。
const CommentPageSize = 50

// Dashboard はページハンドラーが必要とするダッシュボード状態のインターフェース。
type Dashboard interface {
	View() dashboard.View
	Refresh(ctx context.Context) error
	FindStream(videoID string) (model.Stream, bool)
}

// StreamReader は配信詳細画面が必要とするゲートウェイのインターフェース。
type StreamReader interface {
	GetStream(ctx context.Context, videoID string) (*model.Stream, error)
	ListComments(ctx context.Context, videoID string, query gateway.CommentQuery) (*model.CommentPage, error)
}

// PageHandler は概要・配信一覧・配信詳細画面と手動更新のHTTPハンドラー。
type PageHandler struct {
	dashboard Dashboard
	streams   StreamReader
	renderer  *Renderer
	logger    *slog.Logger
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(dash Dashboard, streams StreamReader, renderer *Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		dashboard: dash,
		streams:   streams,
		renderer:  renderer,
		logger:    logger,
	}
}

type overviewContent struct {
	ActiveStreams []model.Stream
	HiddenStreams int
	Channels      []model.Channel
}

// Overview は概要画面を表示する。
// GET /, GET /dashboard
func (h *PageHandler) Overview(w http.ResponseWriter, r *http.Request) {
	view := h.dashboard.View()

	streams := view.Streams
	hidden := 0
	if len(streams) > overviewStreamLimit {
		hidden = len(streams) - overviewStreamLimit
		streams = streams[:overviewStreamLimit]
	}

	h.renderer.render(w, http.StatusOK, pageOverview, h.renderer.newPage(r, "概要", view, overviewContent{
		ActiveStreams: streams,
		HiddenStreams: hidden,
		Channels:      view.Channels,
	}))
}

type streamsContent struct {
	Streams []model.Stream
}

// Streams は配信一覧画面を表示する。
// GET /streams
func (h *PageHandler) Streams(w http.ResponseWriter, r *http.Request) {
	view := h.dashboard.View()
	h.renderer.render(w, http.StatusOK, pageStreams, h.renderer.newPage(r, "配信一覧", view, streamsContent{
		Streams: view.Streams,
	}))
}

type streamDetailContent struct {
	Stream      model.Stream
	NotFound    *model.APIError
	LoadError   string
	Comments    *model.CommentPage
	CommentsErr string
	Offset      int
	PrevOffset  int
	NextOffset  int
	HasPrev     bool
	HasNext     bool
}

// StreamDetail は配信詳細とコメントを表示する。
// 読み込み済みの配信を優先し、なければゲートウェイから取得する。
// 配信が存在しない場合はその場で「見つかりません」を表示する（404）。
// GET /streams/{id}?offset=
func (h *PageHandler) StreamDetail(w http.ResponseWriter, r *http.Request) {
	videoID := navigation.FromPath(r.URL.EscapedPath()).StreamID
	if videoID == "" {
		videoID = chi.URLParam(r, "id")
	}
	view := h.dashboard.View()
	title := "配信詳細"

	stream, ok := h.dashboard.FindStream(videoID)
	if !ok {
		s, err := h.streams.GetStream(r.Context(), videoID)
		if err != nil {
			var gwErr *gateway.Error
			if errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound {
				h.renderer.render(w, http.StatusNotFound, pageStreamDetail, h.renderer.newPage(r, title, view, streamDetailContent{
					NotFound: model.NewStreamNotFoundError(videoID),
				}))
				return
			}
			h.logger.Error("配信の取得に失敗しました",
				slog.String("video_id", videoID),
				slog.String("error", err.Error()),
			)
			h.renderer.render(w, http.StatusBadGateway, pageStreamDetail, h.renderer.newPage(r, title, view, streamDetailContent{
				Stream:    model.Stream{VideoID: videoID},
				LoadError: err.Error(),
			}))
			return
		}
		stream = *s
	}

	offset := parseOffset(r.URL.Query().Get("offset"))
	content := streamDetailContent{Stream: stream, Offset: offset}

	page, err := h.streams.ListComments(r.Context(), videoID, gateway.CommentQuery{Limit: CommentPageSize, Offset: offset})
	if err != nil {
		h.logger.Warn("コメントの取得に失敗しました",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)
		content.CommentsErr = err.Error()
	} else {
		content.Comments = page
		content.HasPrev = offset > 0
		content.PrevOffset = max(offset-CommentPageSize, 0)
		content.NextOffset = offset + len(page.Comments)
		content.HasNext = len(page.Comments) > 0 && content.NextOffset < page.Total
	}

	if stream.Title != "" {
		title = stream.Title
	}
	h.renderer.render(w, http.StatusOK, pageStreamDetail, h.renderer.newPage(r, title, view, content))
}

// Refresh はダッシュボードを手動更新し、元の画面へリダイレクトする。
// 失敗はダッシュボードのエラー表示に反映されるため、ここでは扱わない。
// 自動更新と同じく、クライアントの切断で取得が中断されないようキャンセルを切り離す。
// POST /refresh
func (h *PageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.Refresh(context.WithoutCancel(r.Context())); err != nil && !errors.Is(err, dashboard.ErrClosed) {
		h.logger.Warn("手動更新に失敗しました", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, navigation.Normalize(r.PostFormValue("return_to")), http.StatusSeeOther)
}

// parseOffset はコメントのオフセットを解析する。不正な値は0とする。
func parseOffset(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
