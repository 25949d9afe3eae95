package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"treebio-api/internal/middleware"
	"treebio-api/internal/realtime"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// wsClient implements realtime.Client by wrapping a websocket connection.
// Writes are serialized because the hub broadcasts from request goroutines.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(message []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

func (c *wsClient) sendFrame(f realtime.Frame) bool {
	msg, err := json.Marshal(f)
	if err != nil {
		return false
	}
	return c.Send(msg)
}

func (c *wsClient) Close() {
	if c != nil && c.conn != nil {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is already handled at Gin level; allow upgrade from any origin here
		return true
	},
}

// WebSocket upgrades the connection and serves channel subscriptions.
// Anonymous sockets may only join public channels; a private channel is
// reserved for the user it belongs to.
// GET /api/ws
func (h *Handler) WebSocket(c *gin.Context) {
	if !h.Publisher.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime push is not configured"})
		return
	}
	userID := c.GetString(middleware.ContextUserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", "err", err)
		return
	}

	client := &wsClient{conn: conn}
	socketID := uuid.NewString()
	logger := h.logger.With("socketId", socketID, "userId", userID)

	// Heartbeat: send periodic pings; close on error
	pingTicker := time.NewTicker(pingPeriod)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
					// ping failed; reader loop will exit on next error
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		pingTicker.Stop()
		h.Hub.UnregisterAll(client)
		client.Close()
		logger.Debug("socket closed")
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if !client.sendFrame(realtime.Frame{Type: realtime.FrameConnected, SocketID: socketID}) {
		return
	}
	logger.Debug("socket connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Normal close or error; exit loop
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var f realtime.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			client.sendFrame(realtime.Frame{Type: realtime.FrameError, Error: "malformed frame"})
			continue
		}
		switch f.Type {
		case realtime.FrameSubscribe:
			if reason := authorizeChannel(f.Channel, userID); reason != "" {
				logger.Info("subscription refused", "channel", f.Channel, "reason", reason)
				client.sendFrame(realtime.Frame{Type: realtime.FrameError, Channel: f.Channel, Error: reason})
				continue
			}
			h.Hub.Register(f.Channel, client)
			client.sendFrame(realtime.Frame{Type: realtime.FrameSubscribed, Channel: f.Channel})
		case realtime.FrameUnsubscribe:
			h.Hub.Unregister(f.Channel, client)
		default:
			client.sendFrame(realtime.Frame{Type: realtime.FrameError, Error: "unknown frame type"})
		}
	}
}

// authorizeChannel returns a refusal reason, or "" when userID may join.
func authorizeChannel(channel, userID string) string {
	kind, key, ok := realtime.ParseChannel(channel)
	switch {
	case !ok:
		return "invalid channel"
	case kind == realtime.ChannelUser && key != userID:
		return "forbidden"
	}
	return ""
}
