package services

import (
	"fmt"
	"sync"
	"time"

	"tripwise-backend/internal/metrics"
	"tripwise-backend/internal/wire"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Client is one websocket connection. A user may hold several.
type Client struct {
	UserID string

	conn  *websocket.Conn
	codec wire.Codec
	send  chan []byte

	mu     sync.Mutex
	closed bool
	views  map[string]View
}

// NewClient wraps an upgraded connection
func NewClient(userID string, conn *websocket.Conn, codec wire.Codec) *Client {
	return &Client{
		UserID: userID,
		conn:   conn,
		codec:  codec,
		send:   make(chan []byte, sendBufferSize),
		views:  make(map[string]View),
	}
}

// Codec returns the codec the connection negotiated
func (c *Client) Codec() wire.Codec {
	return c.codec
}

// Send queues a frame. A client that cannot keep up is disconnected, since
// a dropped render would leave its lists out of step.
func (c *Client) Send(frame wire.Frame) error {
	data, err := c.codec.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", frame.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().Str("user_id", c.UserID).Msg("WebSocket send buffer full, disconnecting")
		c.closeLocked()
		return fmt.Errorf("send buffer full")
	}
}

// View returns the view registered under subID
func (c *Client) View(subID string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[subID]
	return view, ok
}

// OpenView registers view under subID, closing any other view the id held
// before
func (c *Client) OpenView(subID string, view View) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		view.Close()
		return false
	}
	prev := c.views[subID]
	c.views[subID] = view
	c.mu.Unlock()

	if prev != nil && prev != view {
		prev.Close()
	}
	return true
}

// CloseView closes the view registered under subID
func (c *Client) CloseView(subID string) bool {
	c.mu.Lock()
	view, ok := c.views[subID]
	delete(c.views, subID)
	c.mu.Unlock()

	if ok {
		view.Close()
	}
	return ok
}

// Views returns the number of open views
func (c *Client) Views() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}

// Close stops the write pump and every open view
func (c *Client) Close() {
	c.mu.Lock()
	c.closeLocked()
	views := c.views
	c.views = make(map[string]View)
	c.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
// It returns when the client is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
				log.Debug().Err(err).Str("user_id", c.UserID).Msg("WebSocket write failed")
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

// PrepareRead sets the read limits and the pong handler that extends the
// read deadline.
func (c *Client) PrepareRead(maxMessageSize int64) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// WSHub tracks the live connections of every user
type WSHub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection
func (h *WSHub) Register(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	n := len(h.clients[c.UserID])
	h.mu.Unlock()

	metrics.WebsocketConnections.Inc()
	log.Info().Str("user_id", c.UserID).Int("connections", n).Msg("WebSocket connection registered")
}

// Unregister removes a connection and closes it
func (h *WSHub) Unregister(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.UserID]
	if ok {
		if _, ok = clients[c]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.clients, c.UserID)
			}
		}
	}
	h.mu.Unlock()

	c.Close()
	if ok {
		metrics.WebsocketConnections.Dec()
		log.Info().Str("user_id", c.UserID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a frame to every connection of a user
func (h *WSHub) SendToUser(userID string, frame wire.Frame) error {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return fmt.Errorf("user %s is not connected", userID)
	}

	var firstErr error
	for _, c := range clients {
		if err := c.Send(frame); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to send message: %w", err)
		}
	}
	return firstErr
}

// SendNotice sends a notice to every connection of a user
func (h *WSHub) SendNotice(userID string, n Notice) error {
	return h.SendToUser(userID, wire.Frame{Type: wire.TypeNotice, Level: n.Level, Message: n.Message})
}

// IsOnline checks if a user has at least one connection
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Close disconnects every client
func (h *WSHub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
		metrics.WebsocketConnections.Dec()
	}
}
