// ABOUTME: Websocket hub that streams workspace events, board snapshots, and notifications to dashboard clients.
// ABOUTME: Clients join one workspace room; slow clients are dropped instead of blocking the hub.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/2389-research/funnel/board/automation"
	"github.com/2389-research/funnel/board/core"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Message is the frame written to websocket clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventFrame pairs a committed event with the board it touched.
type EventFrame struct {
	Event core.Event  `json:"event"`
	Board *core.Board `json:"board,omitempty"`
}

// Client is one websocket connection bound to a workspace.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	pong        chan struct{}
	workspaceID ulid.ULID
}

type roomMessage struct {
	workspaceID ulid.ULID
	data        []byte
}

// Hub routes messages to the clients of each workspace.
type Hub struct {
	rooms      map[ulid.ULID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub creates a hub. checkOrigin may be nil to allow same-origin requests only.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		rooms:      make(map[ulid.ULID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 1024),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: zap.L().With(zap.String("component", "board.hub")),
	}
}

// Run serves register, unregister, and broadcast requests until ctx ends,
// then closes every client. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	defer func() {
		for _, room := range h.rooms {
			for c := range room {
				close(c.send)
			}
		}
		h.rooms = map[ulid.ULID]map[*Client]bool{}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-h.register:
			room := h.rooms[c.workspaceID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[c.workspaceID] = room
			}
			room[c] = true
			h.log.Debug("client connected", zap.String("action", "register"), zap.Stringer("workspace", c.workspaceID), zap.Int("clients", len(room)))
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			for c := range h.rooms[m.workspaceID] {
				select {
				case c.send <- m.data:
				default:
					h.log.Warn("client send buffer full, dropping client", zap.String("action", "broadcast"), zap.Stringer("workspace", m.workspaceID))
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	room := h.rooms[c.workspaceID]
	if !room[c] {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.workspaceID)
	}
	h.log.Debug("client disconnected", zap.String("action", "unregister"), zap.Stringer("workspace", c.workspaceID))
}

// Publish queues a message for every client of a workspace. It never blocks;
// when the hub is saturated the message is dropped.
func (h *Hub) Publish(workspaceID ulid.ULID, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal websocket message", zap.String("action", "publish"), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- roomMessage{workspaceID: workspaceID, data: data}:
	default:
		h.log.Warn("hub saturated, dropping message", zap.String("action", "publish"), zap.String("type", msg.Type))
	}
}

// Notify implements automation.Notifier.
func (h *Hub) Notify(_ context.Context, n automation.Notification) {
	h.Publish(n.WorkspaceID, Message{Type: "notification", Data: n})
}

// ServeWS upgrades the request and attaches the connection to a workspace room.
// The first frame sent is a snapshot of the workspace.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, ws *core.Workspace) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("action", "upgrade"), zap.Error(err))
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), pong: make(chan struct{}, 1), workspaceID: ws.ID}
	if data, err := json.Marshal(Message{Type: "snapshot", Data: ws}); err == nil {
		c.send <- data
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards client frames except ping, answering it with pong.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.String("action", "read"), zap.Error(err))
			}
			return
		}
		var msg Message
		if json.Unmarshal(raw, &msg) != nil || msg.Type != "ping" {
			continue
		}
		select {
		case c.pong <- struct{}{}:
		default:
		}
	}
}

func (c *Client) writePump() {
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
				return
			}
		case <-c.pong:
			pong, _ := json.Marshal(Message{Type: "pong", Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)}})
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pong); err != nil {
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
