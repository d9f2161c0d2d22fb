package models

import "time"

type SessionStatus string

const (
	SessionStatusWaiting SessionStatus = "waiting"
	SessionStatusActive  SessionStatus = "active"
	SessionStatusEnded   SessionStatus = "ended"
)

// Session is one customer consultation, tracked from creation until an
// operator ends it or the reaper times it out. The admission queue only ever
// holds the ID; the record itself lives in the session store.
type Session struct {
	ID         string        `json:"id"`
	CustomerID string        `json:"customer_id"`
	OperatorID string        `json:"operator_id,omitempty"`
	Status     SessionStatus `json:"status"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (s *Session) IsWaiting() bool {
	return s.Status == SessionStatusWaiting
}

func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

func (s *Session) IsEnded() bool {
	return s.Status == SessionStatusEnded
}

// HasParticipant reports whether username is the customer or the assigned
// operator of this session.
func (s *Session) HasParticipant(username string) bool {
	if username == "" {
		return false
	}
	return s.CustomerID == username || s.OperatorID == username
}
