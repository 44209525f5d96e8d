package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa escritas: gorilla/websocket aceita um único writer por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas por usuário
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	mu       sync.RWMutex
	// userID -> conexões
	subs map[string]map[*client]struct{}
}

// NewHub cria o Hub com política de origem customizada
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP faz o upgrade e atende subscribe/unsubscribe/ping até o cliente desconectar
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer func() {
		h.drop(c)
		_ = conn.Close()
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.UserID == "" {
				_ = c.writeJSON(map[string]string{"type": "error", "error": "userId required"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.UserID]; !ok {
				h.subs[msg.UserID] = make(map[*client]struct{})
			}
			h.subs[msg.UserID][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			h.remove(msg.UserID, c)
			h.mu.Unlock()
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}
}

// remove exige h.mu travado
func (h *Hub) remove(userID string, c *client) {
	if set, ok := h.subs[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID := range h.subs {
		h.remove(userID, c)
	}
}

// Subscribers retorna quantas conexões acompanham o usuário
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Broadcast envia a liquidação para todas as conexões inscritas no usuário da aposta
func (h *Hub) Broadcast(ev events.BetSettled) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[ev.UserID]))
	for c := range h.subs[ev.UserID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	upd := SettlementUpdate{Type: "bet_settled", UserID: ev.UserID, Payload: ev}
	for _, c := range targets {
		if err := c.writeJSON(upd); err != nil {
			h.log.Debug("ws write failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
	}
}

// decode é compartilhado com o subscriber Redis
func decode(payload string) (events.BetSettled, error) {
	var ev events.BetSettled
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}
