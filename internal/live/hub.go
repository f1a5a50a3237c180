package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Hub はWebSocket接続を管理し、イベントを全クライアントへ配信する。
type Hub struct {
	logger         *slog.Logger
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	register   chan *client
	unregister chan *client
	done       chan struct{}
	seq        atomic.Int64
}

// NewHub はHubの新しいインスタンスを生成する。
// allowedOriginsに含まれるOrigin、または同一ホストからの接続のみ受け付ける。
func NewHub(logger *slog.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		logger:         logger,
		allowedOrigins: make(map[string]struct{}, len(allowedOrigins)),
		clients:        make(map[*client]struct{}),
		register:       make(chan *client),
		unregister:     make(chan *client),
		done:           make(chan struct{}),
	}
	for _, o := range allowedOrigins {
		if o != "" {
			h.allowedOrigins[o] = struct{}{}
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run はクライアントの登録・解除を処理するループ。
// コンテキストがキャンセルされると全クライアントを切断して終了する。
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("WebSocketハブを停止しました")
			return
		}
	}
}

// Broadcast はイベントに連番を付与し、全クライアントへ送信する。
// 送信バッファが詰まったクライアントは切断する。
func (h *Hub) Broadcast(ev Event) {
	ev.Seq = h.seq.Add(1)

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("WebSocketイベントのエンコードに失敗しました", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("送信バッファが一杯のためクライアントを切断します")
			go h.drop(c)
		}
	}
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP はHTTP接続をWebSocketにアップグレードし、クライアントを登録する。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.done:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("WebSocketのアップグレードに失敗しました", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// drop はクライアントの登録解除を要求する。ハブ停止後は何もしない。
func (h *Hub) drop(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Debug("WebSocketクライアントが接続しました", slog.Int("clients", len(h.clients)))
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("WebSocketクライアントが切断しました", slog.Int("clients", len(h.clients)))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// checkOrigin はOriginヘッダーが同一ホストまたは許可リストに含まれるかを判定する。
// Originのないリクエスト（ブラウザ以外）は許可する。
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if _, ok := h.allowedOrigins[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
