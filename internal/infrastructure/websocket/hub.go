package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster broadcasts trace events to subscribed clients. This interface
// exists to let a future Redis-backed adapter replace Hub for horizontal
// scaling without changing callers.
type Broadcaster interface {
	Broadcast(runID string, event *WSEvent)
}

type broadcastMsg struct {
	runID string
	event *WSEvent
}

// Hub manages WebSocket connections and fans out trace events to clients
// subscribed to a given run.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg

	byRunID map[string]map[*Client]bool

	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		byRunID:    make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Run starts the hub's main event loop. Call it in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case msg := <-h.broadcast:
			h.broadcastEvent(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.logger.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("websocket client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.subs.mu.RLock()
	for runID := range client.subs.runs {
		if clients, ok := h.byRunID[runID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byRunID, runID)
			}
		}
	}
	client.subs.mu.RUnlock()

	h.logger.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("websocket client unregistered")
}

// Broadcast implements Broadcaster.
func (h *Hub) Broadcast(runID string, event *WSEvent) {
	h.broadcast <- &broadcastMsg{runID: runID, event: event}
}

func (h *Hub) broadcastEvent(msg *broadcastMsg) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.byRunID[msg.runID]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- msg.event:
		default:
			h.logger.Warn().Str("client_id", client.id).Str("event_type", msg.event.Type).Msg("client buffer full, dropping message")
		}
	}
}

// Subscribe adds a subscription for a client to a run's trace events.
func (h *Hub) Subscribe(client *Client, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()

	client.subs.runs[runID] = true
	if h.byRunID[runID] == nil {
		h.byRunID[runID] = make(map[*Client]bool)
	}
	h.byRunID[runID][client] = true

	h.logger.Debug().Str("client_id", client.id).Str("run_id", runID).Msg("client subscribed to run")
}

// Unsubscribe removes a subscription for a client.
func (h *Hub) Unsubscribe(client *Client, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()

	delete(client.subs.runs, runID)
	if clients, ok := h.byRunID[runID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.byRunID, runID)
		}
	}

	h.logger.Debug().Str("client_id", client.id).Str("run_id", runID).Msg("client unsubscribed from run")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
