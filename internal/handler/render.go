package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/middleware"
	"github.com/hitoshi/chatdash/internal/model"
	"github.com/hitoshi/chatdash/internal/navigation"
	"github.com/hitoshi/chatdash/internal/security"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ページテンプレート名
const (
	pageOverview     = "overview"
	pageChannels     = "channels"
	pageStreams      = "streams"
	pageStreamDetail = "stream_detail"
	pageConfirm      = "confirm"
)

var pageNames = []string{pageOverview, pageChannels, pageStreams, pageStreamDetail, pageConfirm}

// AppInfo はヘッダー・フッター・API接続状況に表示するアプリケーション情報。
type AppInfo struct {
	Environment string
	Version     string
	BuildTime   string
	GatewayURL  string
}

// pageData は全ページ共通のテンプレートデータ。
type pageData struct {
	Title     string
	Tabs      []navigation.Tab
	Path      string
	View      dashboard.View
	App       AppInfo
	CSRFToken string
	Content   any
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
type Renderer struct {
	pages  map[string]*template.Template
	app    AppInfo
	logger *slog.Logger
}

// NewRenderer はテンプレートを読み込みRendererを生成する。
// 日時はlocのタイムゾーンで表示し、配信説明文はsanitizerで無害化する。
func NewRenderer(app AppInfo, sanitizer *security.ContentSanitizer, loc *time.Location, logger *slog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"datetime":    func(raw string) string { return model.FormatDateTime(raw, loc) },
		"date":        func(raw string) string { return model.FormatDate(raw, loc) },
		"comma":       comma,
		"channelURL":  model.ChannelURL,
		"description": sanitizer.Description,
		"add":         func(a, b int) int { return a + b },
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("テンプレートの読み込みに失敗しました (%s): %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, app: app, logger: logger}, nil
}

// comma は件数を3桁区切りで表示する。nilのポインタは"-"とする。
func comma(n any) string {
	switch v := n.(type) {
	case int:
		return humanize.Comma(int64(v))
	case int64:
		return humanize.Comma(v)
	case *int64:
		if v == nil {
			return "-"
		}
		return humanize.Comma(*v)
	default:
		return fmt.Sprint(n)
	}
}

// StaticHandler は埋め込みの静的ファイル（CSS・JavaScript）を配信するハンドラーを返す。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// newPage は現在のパスから導出した表示状態で共通データを組み立てる。
func (rn *Renderer) newPage(r *http.Request, title string, view dashboard.View, content any) pageData {
	state := navigation.FromPath(r.URL.EscapedPath())
	return pageData{
		Title:     title,
		Tabs:      navigation.Tabs(state),
		Path:      navigation.ToPath(state),
		View:      view,
		App:       rn.app,
		CSRFToken: middleware.CSRFToken(r.Context()),
		Content:   content,
	}
}

// render はページを描画する。描画途中の失敗で不完全なHTMLを返さないようバッファに書き出してから送信する。
func (rn *Renderer) render(w http.ResponseWriter, status int, page string, data pageData) {
	t, ok := rn.pages[page]
	if !ok {
		rn.logger.Error("未定義のテンプレートです", slog.String("page", page))
		middleware.WriteInternalServerError(w)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		rn.logger.Error("テンプレートの描画に失敗しました",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
