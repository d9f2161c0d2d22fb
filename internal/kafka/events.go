package kafka

import "time"

// Events published by supportdesk whenever a session transitions. Consumers
// (notification gateways, dashboards) push these to connected clients; the
// service itself only guarantees the store reflects the transition first.

type SessionCreatedEvent struct {
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	QueueSize  int       `json:"queue_size"`
	CreatedAt  time.Time `json:"created_at"`
	Timestamp  time.Time `json:"timestamp"`
}

type SessionAssignedEvent struct {
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	OperatorID string    `json:"operator_id"`
	StartedAt  time.Time `json:"started_at"`
	Timestamp  time.Time `json:"timestamp"`
}

type SessionEndedEvent struct {
	SessionID  string    `json:"session_id"`
	CustomerID string    `json:"customer_id"`
	OperatorID string    `json:"operator_id"`
	Reason     string    `json:"reason"` // manual, timeout
	EndedAt    time.Time `json:"ended_at"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	EndReasonManual  = "manual"
	EndReasonTimeout = "timeout"
)

// Topic names
const (
	TopicSessionCreated  = "SESSION_CREATED"
	TopicSessionAssigned = "SESSION_ASSIGNED"
	TopicSessionEnded    = "SESSION_ENDED"
)
