package services

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB
)

// Server push / reply message types.
const (
	MsgStateInitial = "state:initial"
	MsgStateUpdated = "state:updated"
	MsgSoundPlay    = "sound:play"
	MsgResult       = "result"
	MsgError        = "error"
)

// ServerMessage is the envelope for every server→client frame. ID is
// present only on replies to an acknowledged client intent.
type ServerMessage struct {
	ID      int64  `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client represents a connected realtime channel peer.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	Role Role

	dispatcher *Dispatcher
	log        zerolog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, role Role, dispatcher *Dispatcher, log zerolog.Logger) *Client {
	return &Client{
		Hub:        hub,
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Role:       role,
		dispatcher: dispatcher,
		log:        log.With().Str("role", string(role)).Logger(),
	}
}

// Push queues one message for this client only. A full send buffer
// drops the message; the write pump will notice the dead peer.
func (c *Client) Push(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal message")
		return
	}
	select {
	case c.Send <- data:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}

// ReadPump pumps messages from the WebSocket connection to the dispatcher.
// Messages from one connection are handled sequentially, in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("websocket read error")
			}
			break
		}

		c.dispatcher.Dispatch(c, message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type broadcastRequest struct {
	data    []byte
	exclude *Client
}

// Hub maintains the set of active clients and fans server messages out
// to them. The run loop serializes registration and broadcast, so no
// locking is needed around the client set.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcastRequest
	register   chan *Client
	unregister chan *Client
	log        zerolog.Logger
}

// NewHub creates a new hub instance
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan broadcastRequest),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends a message to every connected client. A non-nil
// exclude skips that one connection (used for the ephemeral sound
// fan-out, where the originator already played the sound locally).
func (h *Hub) Broadcast(msg ServerMessage, exclude *Client) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("failed to marshal broadcast")
		return
	}
	h.broadcast <- broadcastRequest{data: data, exclude: exclude}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Info().Str("role", string(client.Role)).Int("clients", len(h.clients)).Msg("client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.log.Info().Str("role", string(client.Role)).Int("clients", len(h.clients)).Msg("client disconnected")
			}
		case req := <-h.broadcast:
			for client := range h.clients {
				if client == req.exclude {
					continue
				}
				select {
				case client.Send <- req.data:
				default:
					// Client's send buffer is full, assume disconnected
					h.log.Warn().Str("role", string(client.Role)).Msg("client send buffer full, removing client")
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}
