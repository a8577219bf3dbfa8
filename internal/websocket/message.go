package websocket

import (
	"encoding/json"
	"time"
)

// Message types pushed to dashboard clients.
const (
	MessageTypeAlertCreated   = "alert_created"
	MessageTypeAlertUpdated   = "alert_updated"
	MessageTypeAlertEscalated = "alert_escalated"

	MessageTypeIncidentCreated = "incident_created"
	MessageTypeIncidentUpdated = "incident_updated"

	MessageTypeHealthSnapshot = "health_snapshot"
	MessageTypeNotification   = "notification"

	MessageTypeConnection = "connection"
	MessageTypeHeartbeat  = "heartbeat"
)

// Message represents a WebSocket message.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes.
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, _ := json.Marshal(m)
	return data
}

// Topic returns the subscription topic a message type belongs to:
// alert_created and alert_escalated are both "alerts", and so on.
func Topic(messageType string) string {
	switch messageType {
	case MessageTypeAlertCreated, MessageTypeAlertUpdated, MessageTypeAlertEscalated:
		return "alerts"
	case MessageTypeIncidentCreated, MessageTypeIncidentUpdated:
		return "incidents"
	case MessageTypeHealthSnapshot:
		return "health"
	case MessageTypeNotification:
		return "notifications"
	default:
		return ""
	}
}
