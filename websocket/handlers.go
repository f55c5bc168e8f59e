package websocket

import (
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Global hub instance
var GlobalHub *Hub

// InitializeHub initializes the global WebSocket hub
func InitializeHub() {
	GlobalHub = NewHub()
	go GlobalHub.Run()

	utils.GetLogger().Info("WebSocket hub initialized and started", map[string]interface{}{
		"status": "running",
	})
}

// GetHub returns the global hub instance
func GetHub() *Hub {
	return GlobalHub
}

// WebSocketUpgrade handles WebSocket upgrade requests
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}

	return utils.ErrorResponse(c, fiber.StatusUpgradeRequired, "WEBSOCKET_REQUIRED", "WebSocket upgrade required", nil)
}

// WebSocketHandler handles WebSocket connections
func WebSocketHandler(c *websocket.Conn) {
	client := NewClient(c, GlobalHub)
	GlobalHub.RegisterClient(client)

	utils.GetLogger().Info("New WebSocket connection established", map[string]interface{}{
		"client_id":   client.ID,
		"remote_addr": c.RemoteAddr().String(),
	})

	go client.WritePump()
	client.ReadPump() // blocks until the connection closes
}

// GetWebSocketStats returns statistics about WebSocket connections
func GetWebSocketStats() map[string]interface{} {
	if GlobalHub == nil {
		return map[string]interface{}{
			"status":            "not_initialized",
			"connected_clients": 0,
		}
	}

	return map[string]interface{}{
		"status":            "running",
		"connected_clients": GlobalHub.GetConnectedClients(),
		"client_ids":        GlobalHub.GetClientIDs(),
	}
}
