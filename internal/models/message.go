package models

import "time"

type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeSystem MessageType = "system"
)

// Message is one transcript entry of a session. Delivery to connected
// clients happens outside this service; the store only keeps the record.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Sender    string      `json:"sender"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	SentAt    time.Time   `json:"sent_at"`
}
