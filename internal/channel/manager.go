// Package channel は監視チャンネルの登録・監視状態切り替え・監視停止のドメインロジックを提供する。
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/chatdash/internal/model"
)

// channelIDPattern はYouTubeチャンネルIDの形式（UC + 22文字）。
var channelIDPattern = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

// Gateway はチャンネル更新系APIのインターフェース。
// *gateway.Client が満たす。
type Gateway interface {
	AddChannel(ctx context.Context, channelID string) (*model.Channel, error)
	UpdateChannelStatus(ctx context.Context, channelID string, active bool) (*model.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) (*model.ChannelMutation, error)
}

// Snapshot はコミット済みチャンネル一覧の読み取りインターフェース。
type Snapshot interface {
	Channels() []model.Channel
}

// Refresher はダッシュボード全体の再取得を行うインターフェース。
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ValidateChannelID は入力されたチャンネルIDを検証し、前後の空白を除いたIDを返す。
// 空・形式不正・登録済みの順に判定する。
func ValidateChannelID(raw string, existing []model.Channel) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", model.NewChannelIDRequiredError()
	}
	if !channelIDPattern.MatchString(id) {
		return "", model.NewInvalidChannelIDFormatError()
	}
	for _, ch := range existing {
		if ch.ChannelID == id {
			return "", model.NewChannelAlreadyRegisteredError()
		}
	}
	return id, nil
}

// ConfirmationMessage は監視停止前に表示する確認メッセージを返す。
func ConfirmationMessage(ch model.Channel) string {
	name := ch.ChannelName
	if name == "" {
		name = ch.ChannelID
	}
	return fmt.Sprintf("チャンネル「%s」の監視を停止しますか？\n\n"+
		"⚠️ 実行される処理：\n"+
		"• 監視の停止\n"+
		"• 一覧からの削除\n"+
		"• 過去のデータ（配信履歴・コメント）は保持\n\n"+
		"再度監視したい場合は、チャンネルを追加し直してください。", name)
}

// Manager はチャンネル管理のサービス層。
// 更新中のチャンネルIDを追跡し、同一チャンネルへの同時操作を拒否する。
type Manager struct {
	gateway   Gateway
	snapshot  Snapshot
	refresher Refresher
	logger    *slog.Logger

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewManager はManagerの新しいインスタンスを生成する。
func NewManager(gw Gateway, snapshot Snapshot, refresher Refresher, logger *slog.Logger) *Manager {
	return &Manager{
		gateway:   gw,
		snapshot:  snapshot,
		refresher: refresher,
		logger:    logger,
		busy:      make(map[string]struct{}),
	}
}

// Add はチャンネルIDを検証して監視対象に登録し、ダッシュボードを再取得する。
// 検証に失敗した場合はゲートウェイを呼び出さない。
func (m *Manager) Add(ctx context.Context, raw string) (*model.Channel, error) {
	id, err := ValidateChannelID(raw, m.snapshot.Channels())
	if err != nil {
		return nil, err
	}

	ch, err := m.gateway.AddChannel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの追加に失敗しました: %w", err)
	}

	m.logger.Info("チャンネルを追加しました", slog.String("channel_id", id))
	m.refreshAfterMutation(ctx, id)
	return ch, nil
}

// Toggle は読み込み済み一覧の監視状態を反転する。
// 監視中のチャンネルを停止する場合はconfirmedが必要。
func (m *Manager) Toggle(ctx context.Context, channelID string, confirmed bool) (*model.Channel, error) {
	ch, ok := m.Find(channelID)
	if !ok {
		return nil, model.NewChannelNotFoundError(channelID)
	}
	return m.SetActive(ctx, channelID, !ch.IsActive, confirmed)
}

// SetActive はチャンネルの監視状態を変更し、ダッシュボードを再取得する。
// 監視停止はconfirmedがfalseの場合CONFIRMATION_REQUIREDを返す。
func (m *Manager) SetActive(ctx context.Context, channelID string, active, confirmed bool) (*model.Channel, error) {
	if !active && !confirmed {
		return nil, model.NewConfirmationRequiredError(channelID)
	}
	if !m.acquire(channelID) {
		return nil, model.NewChannelBusyError(channelID)
	}
	defer m.release(channelID)

	ch, err := m.gateway.UpdateChannelStatus(ctx, channelID, active)
	if err != nil {
		m.logger.Error("監視状態の変更に失敗しました",
			slog.String("channel_id", channelID),
			slog.Bool("is_active", active),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("監視状態の変更に失敗しました: %w", err)
	}

	m.logger.Info("監視状態を変更しました",
		slog.String("channel_id", channelID),
		slog.Bool("is_active", active),
	)
	m.refreshAfterMutation(ctx, channelID)
	return ch, nil
}

// Stop はチャンネルの監視を停止して一覧から除去する。過去のデータは保持される。
func (m *Manager) Stop(ctx context.Context, channelID string, confirmed bool) (*model.ChannelMutation, error) {
	if !confirmed {
		return nil, model.NewConfirmationRequiredError(channelID)
	}
	if !m.acquire(channelID) {
		return nil, model.NewChannelBusyError(channelID)
	}
	defer m.release(channelID)

	mut, err := m.gateway.DeleteChannel(ctx, channelID)
	if err != nil {
		m.logger.Error("監視停止に失敗しました",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("監視停止に失敗しました: %w", err)
	}

	m.logger.Info("監視を停止しました", slog.String("channel_id", channelID))
	m.refreshAfterMutation(ctx, channelID)
	return mut, nil
}

// Find は読み込み済み一覧からチャンネルを検索する。
func (m *Manager) Find(channelID string) (model.Channel, bool) {
	for _, ch := range m.snapshot.Channels() {
		if ch.ChannelID == channelID {
			return ch, true
		}
	}
	return model.Channel{}, false
}

// IsBusy はチャンネルが更新中の場合にtrueを返す。
func (m *Manager) IsBusy(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.busy[channelID]
	return ok
}

// BusyIDs は更新中のチャンネルIDをソートして返す。
func (m *Manager) BusyIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.busy))
	for id := range m.busy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) acquire(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.busy[channelID]; ok {
		return false
	}
	m.busy[channelID] = struct{}{}
	return true
}

func (m *Manager) release(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.busy, channelID)
}

// refreshAfterMutation は変更成功後にダッシュボードを再取得する。
// 変更自体は完了しているため、再取得の失敗はログのみとする。
func (m *Manager) refreshAfterMutation(ctx context.Context, channelID string) {
	// 更新結果は全閲覧者で共有するため、操作したクライアントの切断で中断させない
	if err := m.refresher.Refresh(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn("変更後のダッシュボード再取得に失敗しました",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()),
		)
	}
}
