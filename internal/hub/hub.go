// Package hub serves the playground state to browser views over a websocket
// and applies the intents they send back.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
	maxMessage = 64 * 1024
)

// Hub broadcasts store snapshots to every connected view.
type Hub struct {
	store    *store.Store
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn
}

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *conn) close() {
	c.once.Do(func() { close(c.send) })
}

// New creates a hub over s. A nil logger uses slog.Default.
func New(s *store.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:  s,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // views are served from anywhere during local use
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[string]*conn),
	}
}

// Handler returns the HTTP routes of the hub.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", h.serveWS)
	mux.HandleFunc("GET /state", h.serveState)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// Run broadcasts a new view after every state change until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	changes, unsubscribe := h.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			h.broadcast()
		}
	}
}

// Connections returns the number of connected views.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) stateMessage() ([]byte, error) {
	payload, err := json.Marshal(NewView(h.store.Snapshot()))
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return json.Marshal(Message{Type: TypeState, Payload: payload})
}

// broadcast encodes under the lock so views receive snapshots in order.
func (h *Hub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns) == 0 {
		return
	}

	data, err := h.stateMessage()
	if err != nil {
		h.logger.Error("failed to encode state", "error", err)
		return
	}
	for id, c := range h.conns {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping slow view", "conn_id", id)
			delete(h.conns, id)
			c.close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		delete(h.conns, id)
		c.close()
	}
}

// join registers c and queues the current state as its first message.
// Changes after the snapshot reach c through broadcast.
func (h *Hub) join(c *conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := h.stateMessage()
	if err != nil {
		return err
	}
	h.conns[c.id] = c
	c.send <- data
	return nil
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	if h.conns[c.id] == c {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) serveState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NewView(h.store.Snapshot())); err != nil {
		h.logger.Warn("failed to write state", "error", err)
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &conn{id: uuid.NewString(), ws: ws, send: make(chan []byte, sendBuffer)}
	h.logger.Info("view connected", "conn_id", c.id, "remote", r.RemoteAddr)

	if err := h.join(c); err != nil {
		h.logger.Error("failed to encode state", "error", err)
		ws.Close()
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *conn) {
	defer func() {
		h.unregister(c)
		h.logger.Info("view disconnected", "conn_id", c.id)
	}()

	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		if err := h.handle(msg); err != nil {
			h.logger.Debug("intent rejected", "conn_id", c.id, "intent", msg.Type, "error", err)
			h.sendError(c, msg.Type, err)
		}
	}
}

func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("websocket write failed", "conn_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) sendError(c *conn, intent string, err error) {
	payload, _ := json.Marshal(ErrorPayload{Message: err.Error(), Intent: intent})
	data, _ := json.Marshal(Message{Type: TypeError, Payload: payload})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.id] != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// handle applies an intent to the store.
func (h *Hub) handle(msg Message) error {
	switch msg.Type {
	case IntentPlayClip:
		var p clipPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Index == "" {
			return errors.New("play_clip: missing index")
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = h.store.PlayClip(ctx, p.Index)
		}()
		return nil
	case IntentRefresh:
		h.store.Refresh()
		return nil
	}

	action, err := decodeAction(msg)
	if err != nil {
		return err
	}
	return h.store.Dispatch(action)
}
