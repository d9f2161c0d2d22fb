package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/internal/queue"
	repo "github.com/ezlevup/supportdesk/internal/repository/redis"
	"github.com/ezlevup/supportdesk/internal/timers"
	"github.com/ezlevup/supportdesk/pkg/logger"
	"github.com/ezlevup/supportdesk/pkg/redis"
)

// SessionService owns the session state machine. The only legal transitions
// are waiting -> active (assignment) and active -> ended; anything else
// fails with ErrStateConflict. It also owns the admission queue and the
// timer registry, constructed once in main and shared by reference.
type SessionService interface {
	Create(ctx context.Context, customerID, notes string) (*models.Session, error)
	Get(ctx context.Context, ssID string) (*models.Session, error)
	End(ctx context.Context, ssID string) (*models.Session, error)
	IsExpired(ssID string) bool
	QueueSize() int
	FindWaiting(ctx context.Context) ([]*models.Session, error)
	FindActiveByOperator(ctx context.Context, operator string) ([]*models.Session, error)
	RebuildQueue(ctx context.Context) (int, error)
}

type sessionService struct {
	repo    repo.SessionRepository
	q       *queue.AdmissionQueue
	tm      *timers.Registry
	timeout time.Duration
	l       logger.Logger
}

func NewSessionService(
	repo repo.SessionRepository,
	q *queue.AdmissionQueue,
	tm *timers.Registry,
	timeout time.Duration,
	l logger.Logger,
) SessionService {
	return &sessionService{
		repo:    repo,
		q:       q,
		tm:      tm,
		timeout: timeout,
		l:       l,
	}
}

func (s *sessionService) Create(ctx context.Context, customerID, notes string) (*models.Session, error) {
	ssID, err := s.generateUniqueID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ss := &models.Session{
		ID:         ssID,
		CustomerID: customerID,
		Status:     models.SessionStatusWaiting,
		Notes:      notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, ss); err != nil {
		s.l.Errorf(ctx, "sessionService.Create: %v", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.q.Enqueue(ssID)

	s.l.Infof(ctx, "Session created: session_id=%s customer=%s queue_size=%d",
		ssID, customerID, s.q.Size())

	return ss, nil
}

// generateUniqueID draws IDs until one is free in the store. Collisions on
// 8 uuid chars are rare but the store is the authority, not the generator.
func (s *sessionService) generateUniqueID(ctx context.Context) (string, error) {
	for {
		ssID := "sess_" + uuid.New().String()[:8]

		exists, err := s.repo.Exists(ctx, ssID)
		if err != nil {
			return "", fmt.Errorf("failed to check session id: %w", err)
		}
		if !exists {
			return ssID, nil
		}
	}
}

func (s *sessionService) Get(ctx context.Context, ssID string) (*models.Session, error) {
	ss, err := s.repo.Get(ctx, ssID)
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		s.l.Errorf(ctx, "sessionService.Get: %v", err)
		return nil, err
	}

	return ss, nil
}

// End transitions an active session to ended. The status check is the
// correctness backstop under races: of two concurrent enders only one sees
// ACTIVE and wins, the other gets ErrStateConflict.
func (s *sessionService) End(ctx context.Context, ssID string) (*models.Session, error) {
	ss, err := s.Get(ctx, ssID)
	if err != nil {
		return nil, err
	}

	if !ss.IsActive() {
		return nil, ErrStateConflict
	}

	now := time.Now()
	ss.Status = models.SessionStatusEnded
	ss.EndedAt = &now

	if err := s.repo.Update(ctx, ss); err != nil {
		s.l.Errorf(ctx, "sessionService.End: %v", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	// Timer entry removed only after the transition is durable; if the save
	// fails the reaper keeps seeing the entry and retries next tick.
	if startedAt, ok := s.tm.Stop(ssID); ok {
		s.l.Infof(ctx, "Session ended: session_id=%s duration=%s",
			ssID, now.Sub(startedAt).Round(time.Second))
	}

	return ss, nil
}

// IsExpired reports whether an active session has outlived the configured
// timeout. Sessions with no timer entry (never assigned, or already ended)
// are never expired.
func (s *sessionService) IsExpired(ssID string) bool {
	startedAt, ok := s.tm.StartedAt(ssID)
	if !ok {
		return false
	}
	return time.Since(startedAt) >= s.timeout
}

func (s *sessionService) QueueSize() int {
	return s.q.Size()
}

func (s *sessionService) FindWaiting(ctx context.Context) ([]*models.Session, error) {
	return s.repo.FindByStatus(ctx, models.SessionStatusWaiting)
}

func (s *sessionService) FindActiveByOperator(ctx context.Context, operator string) ([]*models.Session, error) {
	return s.repo.FindActiveByOperator(ctx, operator)
}

// RebuildQueue reloads the admission queue from persisted WAITING sessions,
// ordered by creation time. Called once at startup: the in-memory queue dies
// with the process but the waiting sessions are durable.
func (s *sessionService) RebuildQueue(ctx context.Context) (int, error) {
	waiting, err := s.repo.FindByStatus(ctx, models.SessionStatusWaiting)
	if err != nil {
		return 0, fmt.Errorf("failed to load waiting sessions: %w", err)
	}

	for _, ss := range waiting {
		s.q.Enqueue(ss.ID)
	}

	s.l.Infof(ctx, "Admission queue rebuilt: waiting_sessions=%d queue_size=%d",
		len(waiting), s.q.Size())

	return len(waiting), nil
}
