package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/relay"
)

const RelaySecretHeader = "X-Relay-Secret"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type RelayHandler struct {
	log    *slog.Logger
	clock  clockwork.Clock
	hub    *relay.Hub
	broker relay.Broker
	secret string
}

// NewRelayHandler serves relay clients from hub and ingests viewer events
// into broker. An empty secret disables viewer ingest.
func NewRelayHandler(log *slog.Logger, clock clockwork.Clock, hub *relay.Hub, broker relay.Broker, secret string) *RelayHandler {
	return &RelayHandler{log: log, clock: clock, hub: hub, broker: broker, secret: secret}
}

func (h *RelayHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("relay: websocket upgrade failed", "error", err)
		return
	}
	h.hub.ServeConn(c.Request.Context(), conn, c.Query("player"))
}

func (h *RelayHandler) IngestViewerEvent(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Viewer relay disabled"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(c.GetHeader(RelaySecretHeader)), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid relay secret"})
		return
	}

	var event relay.ViewerEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if err := event.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = unixNow(h.clock.Now())
	}

	if err := h.broker.Publish(c.Request.Context(), relay.TopicViewer, event); err != nil {
		h.log.Error("relay: failed to publish viewer event", "kind", event.Kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish event"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// Health reports liveness plus the number of connected relay clients.
func (h *RelayHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "relayClients": h.hub.ClientCount()})
}
