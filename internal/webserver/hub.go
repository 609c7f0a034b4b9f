package webserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"appshell/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 32
)

// Envelope is one websocket frame: an event name plus its JSON payload.
// Names match the desktop bridge events ("chat:message", "stt:job").
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newEnvelope(kind string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Data: raw})
}

// client is one websocket connection with its own outbound queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// addressedFrame is a frame for one client.
type addressedFrame struct {
	client *client
	frame  []byte
}

// Hub tracks websocket clients and broadcasts frames to all of them. Only
// the Run goroutine touches the client set and the send queues.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan []byte
	unicast    chan addressedFrame
	register   chan *client
	unregister chan *client
	logger     *slog.Logger
}

// NewHub creates a hub; call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, sendBuffer),
		unicast:    make(chan addressedFrame),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logging.NewComponentLogger(logger, "websocket"),
	}
}

// Run serves registrations and broadcasts until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("websocket client connected", logging.Int("clients", len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.logger.Debug("websocket client disconnected", logging.Int("clients", len(h.clients)))
		case message := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, message)
			}
		case msg := <-h.unicast:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.frame)
			}
		}
	}
}

func (h *Hub) deliver(c *client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("websocket client too slow; disconnecting")
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues an event for every connected client.
func (h *Hub) Broadcast(kind string, data any) {
	frame, err := newEnvelope(kind, data)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", logging.String(logging.FieldEventType, kind), logging.Error(err))
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("websocket broadcast queue full; event dropped", logging.String(logging.FieldEventType, kind))
	}
}

// writePump is the only writer for c.conn.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("websocket write failed", logging.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes inbound frames and hands them to handle until the
// connection fails.
func (h *Hub) readPump(ctx context.Context, c *client, handle func(*client, Envelope)) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-ctx.Done():
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", logging.Error(err))
			}
			return
		}
		handle(c, env)
	}
}

// reply queues a frame for a single client.
func (h *Hub) reply(ctx context.Context, c *client, kind string, data any) {
	frame, err := newEnvelope(kind, data)
	if err != nil {
		h.logger.Error("failed to marshal websocket reply", logging.Error(err))
		return
	}
	select {
	case h.unicast <- addressedFrame{client: c, frame: frame}:
	case <-ctx.Done():
	}
}
