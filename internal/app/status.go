package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hitoshi/chatdash/internal/cache"
	"github.com/hitoshi/chatdash/internal/config"
	"github.com/hitoshi/chatdash/internal/dashboard"
	"github.com/hitoshi/chatdash/internal/model"
)

// StatusOptions はstatusサブコマンドのオプション。
type StatusOptions struct {
	// Cached はゲートウェイではなくRedisのミラーから読み込む。
	Cached bool
	// JSON はテーブルの代わりにJSONで出力する。
	JSON bool
}

// ErrRedisNotConfigured は--cachedでREDIS_URLが未設定の場合に返す。
var ErrRedisNotConfigured = errors.New("REDIS_URL が未設定のため --cached は使用できません")

// RunStatus はダッシュボードを1回更新し、統計・アクティブ配信・チャンネルを出力する。
// 更新に失敗した場合はエラーを出力し、エラーを返す。
func RunStatus(ctx context.Context, cfg *config.Config, w io.Writer, opts StatusOptions) error {
	view, err := loadStatusView(ctx, cfg, opts)
	if err != nil {
		fmt.Fprintf(w, "❌ エラー: %s\n", err)
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	_, err = io.WriteString(w, renderStatus(view, cfg.Location(), time.Now()))
	return err
}

func loadStatusView(ctx context.Context, cfg *config.Config, opts StatusOptions) (dashboard.View, error) {
	logger := slog.Default()

	if opts.Cached {
		if cfg.RedisURL == "" {
			return dashboard.View{}, ErrRedisNotConfigured
		}
		r, err := cache.New(cfg.RedisURL)
		if err != nil {
			return dashboard.View{}, err
		}
		defer r.Close()
		return cache.NewSnapshotMirror(r, cache.SnapshotTTL(cfg.PollInterval), logger).Load(ctx)
	}

	syncer := dashboard.NewSynchronizer(newGatewayClient(cfg, logger, nil), logger,
		dashboard.WithLocation(cfg.Location()),
	)
	defer syncer.Close()

	if err := syncer.Refresh(ctx); err != nil {
		return dashboard.View{}, err
	}
	return syncer.View(), nil
}

// renderStatus はダッシュボード状態を端末向けのテーブルに整形する。
func renderStatus(v dashboard.View, loc *time.Location, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "最終更新: %s", v.LastUpdated)
	if !v.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, " (%s)", humanize.RelTime(v.UpdatedAt, now, "ago", "from now"))
	}
	b.WriteString("\n")
	if v.Err != "" {
		fmt.Fprintf(&b, "❌ エラー: %s\n", v.Err)
	}

	s := v.Stats
	b.WriteString(renderTable(
		[]string{"項目", "件数"},
		[][]string{
			{"監視チャンネル", humanize.Comma(int64(s.TotalChannels))},
			{"アクティブチャンネル", humanize.Comma(int64(s.ActiveChannels))},
			{"検出配信", humanize.Comma(int64(s.TotalStreams))},
			{"アクティブ配信", humanize.Comma(int64(s.ActiveStreams))},
			{"本日の収集コメント", humanize.Comma(s.TotalComments)},
		},
		[]text.Align{text.AlignLeft, text.AlignRight},
	))
	b.WriteString("\n\n")

	if len(v.Streams) == 0 {
		b.WriteString("現在アクティブな配信はありません\n")
	} else {
		rows := make([][]string, 0, len(v.Streams))
		for _, st := range v.Streams {
			start := st.ScheduledStartTime
			if st.ActualStartTime != "" {
				start = st.ActualStartTime
			}
			rows = append(rows, []string{
				st.Status.Label(),
				st.VideoID,
				st.Title,
				st.ChannelID,
				model.FormatDateTime(start, loc),
			})
		}
		b.WriteString(renderTable([]string{"状態", "動画ID", "タイトル", "チャンネル", "開始"}, rows, nil))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(v.Channels) == 0 {
		b.WriteString("監視チャンネルがありません\n")
	} else {
		rows := make([][]string, 0, len(v.Channels))
		for _, ch := range v.Channels {
			state := "⏸️ 停止中"
			if ch.IsActive {
				state = "✅ 監視中"
			}
			subscribers := "-"
			if ch.SubscriberCount != nil {
				subscribers = humanize.Comma(*ch.SubscriberCount)
			}
			rows = append(rows, []string{ch.ChannelID, ch.ChannelName, state, subscribers, model.FormatDate(ch.CreatedAt, loc)})
		}
		b.WriteString(renderTable(
			[]string{"チャンネルID", "名前", "状態", "登録者", "登録日"},
			rows,
			[]text.Align{text.AlignLeft, text.AlignLeft, text.AlignLeft, text.AlignRight},
		))
		b.WriteString("\n")
	}

	return b.String()
}

// renderTable はヘッダーと行からテーブル文字列を生成する。alignsが足りない列は左寄せ。
func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
