package amqp

import (
	"encoding/json"
	"time"
)

// NotificationMessage carries one notification from the tracker to the
// delivery worker. The body is the raw push payload; recipients are
// resolved by the worker from the subscription store.
type NotificationMessage struct {
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewNotificationMessage(actor string, payload []byte) *NotificationMessage {
	return &NotificationMessage{
		Actor:     actor,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
