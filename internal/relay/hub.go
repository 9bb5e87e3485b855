package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vaultcrack/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	clientBuffer   = 32
)

// Client messages.
const (
	MsgPing            = "PING"
	MsgPong            = "PONG"
	MsgSubscribePlayer = "SUBSCRIBE_PLAYER"
)

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	writeMu sync.Mutex

	mu     sync.RWMutex
	player string
}

func (c *Client) Player() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.player
}

func (c *Client) setPlayer(player string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = player
}

// wants reports whether a viewer event for target should reach this client.
// Clients without a player filter see every viewer event.
func (c *Client) wants(target string) bool {
	p := c.Player()
	return p == "" || p == target
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// Hub forwards broker messages to connected websocket clients.
type Hub struct {
	log    *slog.Logger
	broker Broker

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
}

func NewHub(log *slog.Logger, broker Broker) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		broker:     broker,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Run delivers relay messages until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	// Closing done on every exit releases connections waiting to register.
	defer func() {
		close(h.done)
		for client := range h.clients {
			h.drop(client)
		}
	}()

	sub, err := h.broker.Subscribe(ctx, Topics...)
	if err != nil {
		return fmt.Errorf("failed to subscribe hub: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.count.Add(1)
			metrics.RelaySubscribers.Inc()
			h.log.Debug("relay: client registered", "player", client.Player())

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Debug("relay: client unregistered", "player", client.Player())
			}

		case msg, ok := <-sub.C:
			if !ok {
				return ErrClosed
			}
			h.broadcastMessage(msg)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
	metrics.RelaySubscribers.Dec()
}

func (h *Hub) broadcastMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("relay: failed to encode message", "type", msg.Type, "error", err)
		return
	}

	var target string
	if msg.Type == TopicViewer {
		var ev struct {
			Player string `json:"player"`
		}
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			h.log.Warn("relay: malformed viewer event", "error", err)
			return
		}
		target = ev.Player
	}

	for client := range h.clients {
		if msg.Type == TopicViewer && !client.wants(target) {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.log.Warn("relay: client too slow, disconnecting", "player", client.Player())
			h.drop(client)
		}
	}
}

// ServeConn registers conn and blocks until the client disconnects or ctx
// ends. player optionally restricts viewer events to one target.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn, player string) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, clientBuffer), player: player}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		case <-ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("relay: websocket error", "error", err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg inbound) {
	switch msg.Type {
	case MsgPing:
		data, _ := json.Marshal(map[string]any{"type": MsgPong, "data": map[string]int64{"timestamp": time.Now().Unix()}})
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.hub.log.Debug("relay: failed to send pong", "error", err)
		}
	case MsgSubscribePlayer:
		var player string
		if err := json.Unmarshal(msg.Data, &player); err == nil {
			c.setPlayer(player)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
