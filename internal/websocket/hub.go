// Package websocket broadcasts run progress to connected audit UIs. The
// hub owns the client set; clients push frames through buffered send
// channels so a slow consumer never stalls the pipeline.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message frame types.
const (
	TypeConnection = "connection"
	TypeProgress   = "progress"
	TypeRunStarted = "run:started"
	TypeRunDone    = "run:complete"
)

// Message is the envelope sent to every client.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub maintains the active client set and fans out messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	mu      sync.Mutex
	running bool

	logger *slog.Logger
}

// NewHub creates a hub. Call Start before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start launches the hub loop.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()
	go h.run()
}

// Stop disconnects every client and stops the loop.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()
	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("client connected", slog.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}

		case frame := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- frame:
				default:
					// Client cannot keep up; drop it.
					delete(h.clients, client)
					close(client.send)
				}
			}

		case <-h.quit:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Broadcast marshals a message and queues it for every client. Frames are
// dropped when the hub backlog is full rather than blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("broadcast marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Debug("broadcast backlog full, frame dropped",
			slog.String("type", msg.Type))
	}
}
