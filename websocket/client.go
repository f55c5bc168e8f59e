package websocket

import (
	"encoding/json"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/utils"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Dashboard clients only send
	// control messages, never report payloads.
	maxMessageSize = 512
)

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	send     chan models.WSMessage
	hub      *Hub
	LastSeen time.Time
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:       uuid.New().String(),
		conn:     conn,
		send:     make(chan models.WSMessage, 256),
		hub:      hub,
		LastSeen: time.Now(),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	logger := utils.GetLogger()

	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.LastSeen = time.Now()
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error", err, map[string]interface{}{
					"client_id": c.ID,
				})
			}
			break
		}

		var message models.WSMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			logger.Error("Failed to parse WebSocket message", err, map[string]interface{}{
				"client_id": c.ID,
				"message":   string(messageBytes),
			})
			continue
		}

		message.ClientID = c.ID
		message.Timestamp = time.Now()
		c.LastSeen = time.Now()

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	logger := utils.GetLogger()
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			messageBytes, err := json.Marshal(message)
			if err != nil {
				logger.Error("Failed to marshal WebSocket message", err, map[string]interface{}{
					"client_id":    c.ID,
					"message_type": message.Type,
				})
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				logger.Error("Failed to write WebSocket message", err, map[string]interface{}{
					"client_id": c.ID,
				})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming control messages. Run events only flow
// server to client; inbound traffic is limited to connection management.
func (c *Client) handleMessage(message models.WSMessage) {
	logger := utils.GetLogger()

	switch message.Type {
	case "heartbeat":
		response := models.WSMessage{
			Type:      "heartbeat",
			Data:      map[string]interface{}{"status": "pong"},
			Timestamp: time.Now(),
			ClientID:  c.ID,
		}

		select {
		case c.send <- response:
		default:
			logger.Warn("Failed to send heartbeat response", map[string]interface{}{
				"client_id": c.ID,
			})
		}

	case "disconnect":
		logger.Info("WebSocket client requested disconnect", map[string]interface{}{
			"client_id": c.ID,
		})
		c.hub.UnregisterClient(c)

	default:
		logger.Debug("Ignoring inbound WebSocket message", map[string]interface{}{
			"client_id":    c.ID,
			"message_type": message.Type,
		})
	}
}

// IsAlive checks if the client connection is still alive
func (c *Client) IsAlive() bool {
	return time.Since(c.LastSeen) < pongWait
}
