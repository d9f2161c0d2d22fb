package service

import (
	"time"

	"github.com/ezlevup/supportdesk/internal/models"
)

type OpenSessionInput struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Notes      string `json:"notes" validate:"max=2000"`
}

type OpenSessionOutput struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	QueueSize int       `json:"queue_size"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDetailOutput struct {
	Session *models.Session `json:"session"`
	Expired bool            `json:"expired"`
}

type WaitingListOutput struct {
	Sessions  []*models.Session `json:"sessions"`
	QueueSize int               `json:"queue_size"`
}

type ProcessNextOutput struct {
	// Processed is false when the queue had no pending session; that is a
	// normal outcome, not an error.
	Processed bool            `json:"processed"`
	Session   *models.Session `json:"session,omitempty"`
}

type PostMessageInput struct {
	SessionID string `json:"-"`
	Sender    string `json:"sender" validate:"required"`
	Content   string `json:"content" validate:"required,max=4000"`
}
