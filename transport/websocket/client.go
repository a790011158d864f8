package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 16
)

type client struct {
	hub      *Hub
	conn     *websocket.Conn
	memberID string
	logger   *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, memberID string, logger *slog.Logger) *client {
	return &client{
		hub:      hub,
		conn:     conn,
		memberID: memberID,
		logger:   logger.With("memberID", memberID),
		send:     make(chan []byte, sendBufferSize),
	}
}

// trySend queues msg without blocking. It reports false when the buffer is full or the client is gone.
func (that *client) trySend(msg []byte) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.send <- msg:
		return true
	default:
		return false
	}
}

func (that *client) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.closed {
		that.closed = true
		close(that.send)
	}
}

// readPump dispatches every inbound message until the connection fails.
func (that *client) readPump(ctx context.Context, dispatch func(ctx context.Context, c *client, raw []byte)) {
	defer func() {
		that.hub.unregister(that)
		that.conn.Close()
	}()

	that.conn.SetReadLimit(maxMessageSize)
	_ = that.conn.SetReadDeadline(time.Now().Add(pongWait))
	that.conn.SetPongHandler(func(string) error {
		return that.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				that.logger.Warn("connection closed unexpectedly", "error", err)
			}

			return
		}

		dispatch(ctx, that, raw)
	}
}

func (that *client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		that.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				that.logger.Debug("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
