package notifier

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trustlabel/internal/auth"
	"trustlabel/internal/logging"
	"trustlabel/internal/queue"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin policy is enforced at the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is a single websocket connection with its room memberships. Room
// state is guarded by the hub mutex; the send channel is guarded by sendMu so
// a broadcast racing a disconnect never writes to a closed channel.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	role   queue.Role
	rooms  map[string]struct{}
	logger *slog.Logger

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// ServeWS authenticates the handshake and hands the connection to the hub.
// The token comes from the Authorization header or, for browser clients that
// cannot set headers on websocket upgrades, the token query parameter.
func ServeWS(hub *Hub, secret string, logger *slog.Logger) http.HandlerFunc {
	log := logging.NewComponentLogger(logger, "notifier")
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			var ok bool
			token, ok = auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
		}
		identity, err := auth.Verify(secret, token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", logging.Error(err))
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, hub.sendBuffer),
			userID: identity.UserID,
			role:   identity.Role,
			rooms:  make(map[string]struct{}),
			logger: log,
		}
		hub.registerClient(client)

		go client.writePump()
		go client.readPump()
	}
}

// enqueue offers a message without blocking. A client that cannot keep up is
// disconnected rather than allowed to stall the hub.
func (c *Client) enqueue(raw []byte) bool {
	if raw == nil {
		return false
	}
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return false
	}
	select {
	case c.send <- raw:
		c.sendMu.Unlock()
		return true
	default:
		c.sendMu.Unlock()
		c.logger.Warn("send buffer full, dropping client",
			logging.String("user_id", c.userID))
		go func() {
			c.hub.unregisterClient(c)
			_ = c.conn.Close()
		}()
		return false
	}
}

// closeSend stops the write pump. It is the only place the send channel may
// be closed, so late broadcasts see the closed flag instead of panicking.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.conn.Close()
	}()

	pongWait := c.hub.pingInterval + c.hub.pingInterval/2
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error",
					logging.String("user_id", c.userID),
					logging.Error(err))
			}
			return
		}
		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(Envelope{Type: "error", Message: "malformed message"})
		return
	}

	switch msg.Action {
	case "join-room":
		if c.hub.JoinRoom(c, msg.Room) {
			c.reply(Envelope{Type: "room-joined", Data: map[string]string{"room": msg.Room}})
		} else {
			c.reply(Envelope{Type: "error", Message: "room not allowed"})
		}
	case "leave-room":
		c.hub.LeaveRoom(c, msg.Room)
		c.reply(Envelope{Type: "room-left", Data: map[string]string{"room": msg.Room}})
	case "subscribe-queue":
		if c.hub.JoinRoom(c, RoomQueue) {
			c.reply(Envelope{Type: "queue-subscribed"})
		} else {
			c.reply(Envelope{Type: "error", Message: "room not allowed"})
		}
	case "unsubscribe-queue":
		c.hub.LeaveRoom(c, RoomQueue)
		c.reply(Envelope{Type: "queue-unsubscribed"})
	case "ping":
		c.reply(Envelope{Type: "pong"})
	default:
		c.reply(Envelope{Type: "error", Message: "unknown action"})
	}
}

func (c *Client) reply(payload Envelope) {
	payload.Timestamp = time.Now().UTC().Format(time.RFC3339)
	c.enqueue(c.hub.marshal(payload))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
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
