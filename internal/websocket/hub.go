// Package websocket streams execution progress to browser clients. Each
// execution is a room; late joiners get the room's history replayed.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dualplan/internal/logging"
)

// Message types sent to clients
const (
	MessageTypeProgress = "progress"
	MessageTypeResult   = "result"
	MessageTypeError    = "error"
)

const (
	maxHistory        = 256
	finishedRetention = 10 * time.Minute
	sweepInterval     = time.Minute
)

// Message is one frame sent to a client
type Message struct {
	Type        string      `json:"type"`
	ExecutionID string      `json:"executionId"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Options configure origin checking
type Options struct {
	AllowedOrigins []string
	// AllowEmptyOrigin admits non-browser clients; keep it off in production.
	AllowEmptyOrigin bool
}

type room struct {
	clients    map[*Client]bool
	history    [][]byte
	finished   bool
	finishedAt time.Time
}

// Hub maintains execution rooms and their clients
type Hub struct {
	rooms      map[string]*room
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	now        func() time.Time
	mu         sync.Mutex
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts Options, logger *zap.Logger) *Hub {
	h := &Hub{
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logging.OrDefault(logger),
		now:        time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts),
	}
	return h
}

func originChecker(opts Options) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return opts.AllowEmptyOrigin
		}
		for _, allowed := range opts.AllowedOrigins {
			if strings.TrimSpace(allowed) == origin || strings.TrimSpace(allowed) == "*" {
				return true
			}
		}
		return false
	}
}

// Run processes registrations until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, r := range h.rooms {
				for c := range r.clients {
					c.close()
				}
			}
			h.rooms = make(map[string]*room)
			h.mu.Unlock()
			h.logger.Info("websocket hub shutdown complete")
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Hub) roomFor(id string) *room {
	r := h.rooms[id]
	if r == nil {
		r = &room{clients: make(map[*Client]bool)}
		h.rooms[id] = r
	}
	return r
}

// registerClient replays history; clients of a finished room are closed
// right after the replay.
func (h *Hub) registerClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomFor(c.executionID)
	for _, frame := range r.history {
		select {
		case c.send <- frame:
		default:
		}
	}
	if r.finished {
		c.close()
		return
	}
	r.clients[c] = true
	h.logger.Debug("client registered", zap.String("execution_id", c.executionID), zap.Int("clients", len(r.clients)))
}

func (h *Hub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r := h.rooms[c.executionID]; r != nil {
		delete(r.clients, c)
		// a room nobody published to only existed for this subscriber
		if !r.finished && len(r.clients) == 0 && len(r.history) == 0 {
			delete(h.rooms, c.executionID)
		}
	}
	c.close()
}

// Publish sends a message to every client of the execution and records it
// for late joiners. Publishing to a finished execution is ignored.
func (h *Hub) Publish(executionID, msgType string, data interface{}) {
	frame, err := json.Marshal(Message{Type: msgType, ExecutionID: executionID, Data: data, Timestamp: h.now()})
	if err != nil {
		h.logger.Warn("dropping unmarshalable message", zap.String("execution_id", executionID), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.roomFor(executionID)
	if r.finished {
		return
	}
	if len(r.history) < maxHistory {
		r.history = append(r.history, frame)
	}
	for c := range r.clients {
		select {
		case c.send <- frame:
		default:
			// slow consumer
			delete(r.clients, c)
			c.close()
		}
	}
}

// Finish publishes the terminal result and closes the room's clients
func (h *Hub) Finish(executionID string, result interface{}) {
	h.Publish(executionID, MessageTypeResult, result)

	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.roomFor(executionID)
	r.finished = true
	r.finishedAt = h.now()
	for c := range r.clients {
		c.close()
	}
	r.clients = make(map[*Client]bool)
}

func (h *Hub) sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := h.now().Add(-finishedRetention)
	for id, r := range h.rooms {
		if r.finished && r.finishedAt.Before(cutoff) {
			delete(h.rooms, id)
		}
	}
}

// ClientCount returns the number of live clients of an execution
func (h *Hub) ClientCount(executionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.rooms[executionID]; r != nil {
		return len(r.clients)
	}
	return 0
}

// HandleWebSocket upgrades GET /ws/plans/:id
func (h *Hub) HandleWebSocket(c *gin.Context) {
	executionID := c.Param("id")
	if executionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "execution id required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn, executionID)
	go client.writePump()
	go client.readPump()
	h.submit(h.register, client)
}

// submit hands c to the Run loop, or closes it once the hub has stopped
func (h *Hub) submit(ch chan<- *Client, c *Client) {
	select {
	case ch <- c:
	case <-h.done:
		c.close()
	}
}
