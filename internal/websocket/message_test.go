package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicMapping(t *testing.T) {
	assert.Equal(t, "alerts", Topic(MessageTypeAlertCreated))
	assert.Equal(t, "alerts", Topic(MessageTypeAlertUpdated))
	assert.Equal(t, "alerts", Topic(MessageTypeAlertEscalated))
	assert.Equal(t, "incidents", Topic(MessageTypeIncidentCreated))
	assert.Equal(t, "incidents", Topic(MessageTypeIncidentUpdated))
	assert.Equal(t, "health", Topic(MessageTypeHealthSnapshot))
	assert.Equal(t, "notifications", Topic(MessageTypeNotification))
	assert.Equal(t, "", Topic(MessageTypeHeartbeat))
	assert.Equal(t, "", Topic("something_else"))
}

func TestMessageToJSONFillsTimestamp(t *testing.T) {
	raw := Message{Type: MessageTypeAlertCreated, Data: map[string]string{"id": "a1"}}.ToJSON()

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, MessageTypeAlertCreated, decoded.Type)
	assert.False(t, decoded.Timestamp.IsZero())
}
