package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current payload version.
const MessageVersion = 1

// Message carries one cross-surface sync event to the feed worker.
type Message struct {
	EventID    string          `json:"eventId"`
	UserID     string          `json:"userId"`
	AnalysisID string          `json:"analysisId"`
	Kind       string          `json:"requestType"`
	Platform   string          `json:"platform,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	RequestID  string          `json:"requestId,omitempty"`
	Version    int             `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
