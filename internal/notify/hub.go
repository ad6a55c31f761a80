package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safetour/internal/domain"
)

type sseClient struct {
	ch   chan string
	done chan struct{}
}

// Hub broadcasts controller events to server-sent event subscribers. Slow
// clients miss events rather than stall the controller.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*sseClient
	interval time.Duration
	retryMs  int
}

func NewHub(pingInterval time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{clients: make(map[string]*sseClient), interval: pingInterval, retryMs: 3000}
}

func (h *Hub) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	h.publish(EventState, NewStatePayload(state, reason))
}

func (h *Hub) PartialTranscript(text string) {
	h.publish(EventTranscript, map[string]string{"text": text})
}

func (h *Hub) CountdownChanged(countdown domain.CountdownState) {
	h.publish(EventCountdown, countdown)
}

func (h *Hub) AlertDispatched(record domain.TriggerRecord) {
	h.publish(EventAlert, NewAlertPayload(record))
}

func (h *Hub) SessionError(code domain.ErrorCode, detail string) {
	h.publish(EventError, NewErrorPayload(code, detail))
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.ch <- msg:
		default:
		}
	}
}

func (h *Hub) add() (string, *sseClient) {
	id := uuid.NewString()
	c := &sseClient{ch: make(chan string, 64), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return id, c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.done)
		delete(h.clients, id)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.done)
		delete(h.clients, id)
	}
}

// Serve streams events to one client until it disconnects.
func (h *Hub) Serve(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	id, client := h.add()
	defer h.remove(id)

	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			_, _ = c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
