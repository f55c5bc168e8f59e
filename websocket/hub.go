package websocket

import (
	"log"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/utils"
)

// Hub manages WebSocket connections and pushes run lifecycle events to
// connected dashboard clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the WebSocket hub and handles client connections and messages
func (h *Hub) Run() {
	logger := utils.GetLogger()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Info("WebSocket client connected", map[string]interface{}{
				"client_id":     client.ID,
				"total_clients": len(h.clients),
			})

			welcomeMsg := models.WSMessage{
				Type:      "connect",
				Data:      map[string]interface{}{"status": "connected", "client_id": client.ID},
				Timestamp: time.Now(),
				ClientID:  client.ID,
			}

			select {
			case client.send <- welcomeMsg:
			default:
				close(client.send)
				delete(h.clients, client)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Info("WebSocket client disconnected", map[string]interface{}{
					"client_id":     client.ID,
					"total_clients": len(h.clients),
				})
			}

		case message := <-h.broadcast:
			logger.Debug("Broadcasting run event", map[string]interface{}{
				"type":       message.Type,
				"recipients": len(h.clients),
			})

			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is blocked, remove the client
					close(client.send)
					delete(h.clients, client)
					logger.Warn("Removed unresponsive WebSocket client", map[string]interface{}{
						"client_id": client.ID,
					})
				}
			}
		}
	}
}

// BroadcastToAll sends a run event to all connected clients. Implements
// the broadcaster surface consumed by the upload service.
func (h *Hub) BroadcastToAll(msgType string, data interface{}) {
	message := models.WSMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
		ClientID:  "server",
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("Warning: Broadcast channel is full, message dropped")
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	return len(h.clients)
}

// GetClientIDs returns a list of all connected client IDs
func (h *Hub) GetClientIDs() []string {
	clientIDs := make([]string, 0, len(h.clients))
	for client := range h.clients {
		clientIDs = append(clientIDs, client.ID)
	}
	return clientIDs
}

// RegisterClient registers a new client with the hub
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
