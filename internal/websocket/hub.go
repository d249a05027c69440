package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound messages fanned out to every client
	broadcast chan []byte

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.ClientID != "" {
				// If client connects again, close old connection
				if old, ok := h.clients[client.ClientID]; ok {
					close(old.send)
					delete(h.clients, client.ClientID)
				}
				h.clients[client.ClientID] = client
				log.Printf("📱 Client connected: %s", client.ClientID)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if client.ClientID != "" {
				if _, ok := h.clients[client.ClientID]; ok {
					delete(h.clients, client.ClientID)
					close(client.send)
					log.Printf("📴 Client disconnected: %s", client.ClientID)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full or client dead, drop the frame
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans a JSON message out to every connected client
func (h *Hub) Broadcast(message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
		log.Printf("⚠️  Broadcast buffer full, dropping %d bytes", len(jsonMsg))
	}
}

// BroadcastStateChange notifies every client that the app state moved
func (h *Hub) BroadcastStateChange(state string) {
	h.Broadcast(map[string]string{
		"type":  "APP_STATE_CHANGED",
		"state": state,
	})
}

// BroadcastSyncEvent notifies every client about a sync pass result
func (h *Hub) BroadcastSyncEvent(event string, payload interface{}) {
	h.Broadcast(map[string]interface{}{
		"type":    event,
		"payload": payload,
	})
}
