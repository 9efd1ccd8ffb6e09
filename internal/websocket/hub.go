package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Krimson/xray-triage/internal/results"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub управляет WebSocket соединениями экранов результатов
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для регистрации клиентов
	register chan *Client

	// Канал для отмены регистрации клиентов
	unregister chan *Client

	// Канал для исходящих событий
	broadcast chan Event

	// Мютекс для безопасной работы с картой клиентов
	mu sync.RWMutex

	// Последнее событие каждой вкладки (session_id -> сообщение)
	last   map[string][]byte
	lastMu sync.RWMutex

	logger *zap.Logger
	done   chan struct{}
}

// Client представляет WebSocket клиента
type Client struct {
	hub *Hub

	// WebSocket соединение
	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// ID вкладки для фильтрации событий
	sessionID string
}

// Event - сообщение клиенту о переходе экрана результатов
type Event struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	View      results.Snapshot `json:"view"`
	message   []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене следует проверять домен
		return true
	},
}

// NewHub создает новый Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		last:       make(map[string][]byte),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run запускает Hub до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			h.lastMu.RLock()
			message, ok := h.last[client.sessionID]
			h.lastMu.RUnlock()
			if ok {
				client.send <- message
			}
			h.logger.Info("[WEBSOCKET] client registered", zap.String("session_id", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("[WEBSOCKET] client unregistered", zap.String("session_id", client.sessionID))

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.sessionID != event.SessionID {
					continue
				}
				select {
				case client.send <- event.message:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// OnTransition публикует переход экрана всем клиентам вкладки
func (h *Hub) OnTransition(snap results.Snapshot) {
	event := Event{Type: "view", SessionID: snap.SessionID, View: snap}

	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("[WEBSOCKET] failed to marshal view event", zap.Error(err))
		return
	}
	event.message = message

	h.lastMu.Lock()
	h.last[snap.SessionID] = message
	h.lastMu.Unlock()

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("[WEBSOCKET] broadcast channel full, dropping message", zap.String("session_id", snap.SessionID))
	}
}

// Forget удаляет сохраненное событие вкладки
func (h *Hub) Forget(sessionID string) {
	h.lastMu.Lock()
	defer h.lastMu.Unlock()
	delete(h.last, sessionID)
}

// ClientCount - число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket обрабатывает WebSocket соединения: GET /ws?session_id=
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("[WEBSOCKET] failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Запускаем горутины для клиента
	go client.writePump()
	go client.readPump()
}

// readPump читает входящие сообщения, чтобы заметить закрытие соединения
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("[WEBSOCKET] read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("[WEBSOCKET] failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
