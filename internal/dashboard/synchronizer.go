// Package dashboard はダッシュボードの表示データをAPIゲートウェイと同期する。
// 3つのリソースを並列取得し、全件成功した場合のみスナップショットを丸ごと置き換える。
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/chatdash/internal/model"
)

// ErrClosed はClose後にRefreshが呼ばれた、または結果が破棄された場合に返す。
var ErrClosed = errors.New("dashboard: synchronizer is closed")

// LastUpdatedLayout は最終更新日時の表示フォーマット。
const LastUpdatedLayout = "2006/1/2 15:04:05"

// Source はスナップショットの取得元インターフェース。
// *gateway.Client が満たす。
type Source interface {
	ListChannels(ctx context.Context) ([]model.Channel, error)
	ListActiveStreams(ctx context.Context) ([]model.Stream, error)
	GetCollectionStatus(ctx context.Context) (*model.CollectionStatus, error)
}

// RefreshRecorder は更新処理のメトリクスを記録するインターフェース。
type RefreshRecorder interface {
	RecordRefresh(success bool, duration time.Duration)
	SetRefreshInFlight(n int)
	RecordSnapshot(streams []model.Stream)
}

// Snapshot は同一世代で取得したダッシュボードデータ一式。
type Snapshot struct {
	Channels         []model.Channel         `json:"channels"`
	Streams          []model.Stream          `json:"streams"`
	CollectionStatus *model.CollectionStatus `json:"collection_status"`
	Stats            model.SystemStats       `json:"stats"`
}

// View は読み取り用のダッシュボード状態。
// コミット済みスナップショットと、直近の更新結果・更新中フラグを含む。
type View struct {
	Snapshot
	Err         string    `json:"error,omitempty"`
	Loading     bool      `json:"loading"`
	Generation  uint64    `json:"generation"`
	LastUpdated string    `json:"last_updated"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasData は一度でも更新に成功している場合にtrueを返す。
func (v View) HasData() bool {
	return v.Generation > 0
}

// Option はSynchronizerの設定を変更する。
type Option func(*Synchronizer)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithCommitHook は更新の完了ごと（成功・失敗とも）に呼ばれるフックを追加する。
// フックはロック外で呼ばれる。
func WithCommitHook(hook func(View)) Option {
	return func(s *Synchronizer) { s.hooks = append(s.hooks, hook) }
}

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r RefreshRecorder) Option {
	return func(s *Synchronizer) { s.recorder = r }
}

// WithLocation は最終更新日時の表示タイムゾーンを設定する。
func WithLocation(loc *time.Location) Option {
	return func(s *Synchronizer) { s.loc = loc }
}

// Synchronizer はダッシュボードの状態を保持し、APIゲートウェイと同期する。
// 更新は重複して実行でき、最後に完了した更新の結果が残る。
type Synchronizer struct {
	source   Source
	logger   *slog.Logger
	now      func() time.Time
	loc      *time.Location
	recorder RefreshRecorder
	hooks    []func(View)

	// hookMu はフックの呼び出しを直列化する。
	hookMu sync.Mutex

	mu         sync.RWMutex
	snapshot   Snapshot
	err        string
	generation uint64
	updatedAt  time.Time
	nextID     uint64
	inflight   map[uint64]struct{}
	closed     bool
}

// NewSynchronizer はSynchronizerの新しいインスタンスを生成する。
func NewSynchronizer(src Source, logger *slog.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		source:   src,
		logger:   logger,
		now:      time.Now,
		loc:      defaultLocation(),
		inflight: make(map[uint64]struct{}),
		snapshot: Snapshot{
			Channels: []model.Channel{},
			Streams:  []model.Stream{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Refresh はチャンネル・アクティブ配信・収集状況を並列取得し、状態を更新する。
// 全件成功した場合のみスナップショットを置き換え、失敗時は前回のデータを残してエラーだけを設定する。
// リトライは行わない。
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.nextID++
	id := s.nextID
	s.inflight[id] = struct{}{}
	inflight := len(s.inflight)
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.SetRefreshInFlight(inflight)
	}
	s.logger.Debug("ダッシュボードの更新を開始します", slog.Uint64("request_id", id))

	start := time.Now()
	var (
		channels []model.Channel
		streams  []model.Stream
		status   *model.CollectionStatus
		g        errgroup.Group
	)
	g.Go(func() error {
		var err error
		channels, err = s.source.ListChannels(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		streams, err = s.source.ListActiveStreams(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		status, err = s.source.GetCollectionStatus(ctx)
		return err
	})
	fetchErr := g.Wait()
	duration := time.Since(start)

	s.mu.Lock()
	delete(s.inflight, id)
	inflight = len(s.inflight)
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if fetchErr != nil {
		s.err = fetchErr.Error()
	} else {
		now := s.now()
		s.snapshot = Snapshot{
			Channels:         nonNilChannels(channels),
			Streams:          nonNilStreams(streams),
			CollectionStatus: status,
			Stats:            DeriveStats(channels, streams, status, now),
		}
		s.err = ""
		s.generation++
		s.updatedAt = now
	}
	view := s.viewLocked()
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.SetRefreshInFlight(inflight)
		s.recorder.RecordRefresh(fetchErr == nil, duration)
		if fetchErr == nil {
			s.recorder.RecordSnapshot(view.Streams)
		}
	}

	if fetchErr != nil {
		s.logger.Error("ダッシュボードの更新に失敗しました",
			slog.Uint64("request_id", id),
			slog.String("error", fetchErr.Error()),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
	} else {
		s.logger.Info("ダッシュボードを更新しました",
			slog.Uint64("request_id", id),
			slog.Uint64("generation", view.Generation),
			slog.Int("channel_count", len(view.Channels)),
			slog.Int("stream_count", len(view.Streams)),
			slog.Int64("duration_ms", duration.Milliseconds()),
		)
	}

	s.dispatchHooks()
	return fetchErr
}

// dispatchHooks はその時点の最新状態でフックを呼び出す。
// 呼び出しは直列化されるため、最後に呼ばれたフックは常に最新の世代を受け取る。
func (s *Synchronizer) dispatchHooks() {
	if len(s.hooks) == 0 {
		return
	}
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	view := s.View()
	for _, hook := range s.hooks {
		hook(view)
	}
}

// View は現在の状態のコピーを返す。
// スナップショットは常に同一世代のデータのみで構成される。
func (s *Synchronizer) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked()
}

func (s *Synchronizer) viewLocked() View {
	snap := Snapshot{
		Channels: slices.Clone(s.snapshot.Channels),
		Streams:  slices.Clone(s.snapshot.Streams),
		Stats:    s.snapshot.Stats,
	}
	if s.snapshot.CollectionStatus != nil {
		st := *s.snapshot.CollectionStatus
		snap.CollectionStatus = &st
	}

	v := View{
		Snapshot:   snap,
		Err:        s.err,
		Loading:    len(s.inflight) > 0,
		Generation: s.generation,
		UpdatedAt:  s.updatedAt,
	}
	if !s.updatedAt.IsZero() {
		v.LastUpdated = s.updatedAt.In(s.loc).Format(LastUpdatedLayout)
	}
	return v
}

// Channels はコミット済みのチャンネル一覧を返す。
func (s *Synchronizer) Channels() []model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snapshot.Channels)
}

// FindStream はコミット済みスナップショットから配信を検索する。
func (s *Synchronizer) FindStream(videoID string) (model.Stream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.snapshot.Streams {
		if st.VideoID == videoID {
			return st, true
		}
	}
	return model.Stream{}, false
}

// Close は以後の更新結果を破棄する。実行中のリクエストはキャンセルしない。
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func nonNilChannels(ch []model.Channel) []model.Channel {
	if ch == nil {
		return []model.Channel{}
	}
	return ch
}

func nonNilStreams(st []model.Stream) []model.Stream {
	if st == nil {
		return []model.Stream{}
	}
	return st
}
