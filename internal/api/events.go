package api

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"marketlens/internal"
	"marketlens/internal/session"
)

// SelectionEvent is streamed to clients whenever the selection changes
type SelectionEvent struct {
	SessionID string         `json:"sessionId"`
	Change    session.Change `json:"change"`
	Timestamp time.Time      `json:"timestamp"`
}

// SelectionHub fans selection changes out to Server-Sent Events clients
type SelectionHub struct {
	clients   map[chan SelectionEvent]struct{}
	clientsMu sync.RWMutex
	keepAlive time.Duration
	logger    *internal.Logger
}

// NewSelectionHub creates a hub that pings idle clients every keepAlive
func NewSelectionHub(keepAlive time.Duration, logger *internal.Logger) *SelectionHub {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SelectionHub{
		clients:   make(map[chan SelectionEvent]struct{}),
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// Subscribe registers a client channel
func (h *SelectionHub) Subscribe() chan SelectionEvent {
	ch := make(chan SelectionEvent, 10)
	h.clientsMu.Lock()
	h.clients[ch] = struct{}{}
	h.logger.Debug("[SSE] client registered (total clients: %d)", len(h.clients))
	h.clientsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a client channel
func (h *SelectionHub) Unsubscribe(ch chan SelectionEvent) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[ch]; !ok {
		return
	}
	delete(h.clients, ch)
	close(ch)
	h.logger.Debug("[SSE] client unregistered (remaining clients: %d)", len(h.clients))
}

// Broadcast sends event to every client. Clients with a full buffer miss it.
func (h *SelectionHub) Broadcast(event SelectionEvent) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.logger.Warn("[SSE] client channel full, skipping version %d", event.Change.Version)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *SelectionHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HandleSSE streams selection events until the client disconnects
func (h *SelectionHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("[SSE] failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("selection", string(payload))
			return true
		case <-ticker.C:
			c.SSEvent("ping", `{"status":"alive"}`)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
