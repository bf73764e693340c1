package amqp

import (
	"encoding/json"
	"time"
)

// PushMessage carries one push notification through the delivery queue.
// The worker forwards it to the push gateway as-is; no database lookup is
// needed on the consuming side.
type PushMessage struct {
	Token     string    `json:"token"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPushMessage(token, title, body string) *PushMessage {
	return &PushMessage{
		Token:     token,
		Title:     title,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (m *PushMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PushMessageFromJSON(data []byte) (*PushMessage, error) {
	var msg PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
