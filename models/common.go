package models

import "time"

// HealthStatus reports the health of the backend's collaborators.
type HealthStatus struct {
	Server   bool   `json:"server"`
	Database bool   `json:"database"`
	BlobIO   bool   `json:"blob_storage"`
	Message  string `json:"message"`
}

// WSMessage is the envelope for run lifecycle events pushed to dashboard
// clients over the WebSocket hub.
type WSMessage struct {
	Type      string      `json:"type" validate:"required,oneof=run_received run_processed run_duplicate run_failed connect disconnect heartbeat"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	ClientID  string      `json:"client_id" validate:"required"`
}

// WebSocket event types broadcast by the upload pipeline.
const (
	EventRunReceived  = "run_received"
	EventRunProcessed = "run_processed"
	EventRunDuplicate = "run_duplicate"
	EventRunFailed    = "run_failed"
)
