package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/internal/queue"
	repo "github.com/ezlevup/supportdesk/internal/repository/redis"
	"github.com/ezlevup/supportdesk/internal/timers"
	"github.com/ezlevup/supportdesk/pkg/logger"
	"github.com/ezlevup/supportdesk/pkg/redis"
)

// AssignmentService matches waiting sessions to operators. AutoAssign is a
// greedy least-loaded pick over ONLINE operators, with active counts read
// fresh from the store on every call rather than cached.
type AssignmentService interface {
	Assign(ctx context.Context, ssID, operator string) (*models.Session, error)
	AutoAssign(ctx context.Context, ssID string) (*models.Session, error)
	// ProcessNext pops the oldest waiting session and auto-assigns it. The
	// bool result distinguishes "queue empty" (false, nil error) from an
	// actual assignment; failures come back as errors.
	ProcessNext(ctx context.Context) (*models.Session, bool, error)
}

type assignmentService struct {
	ssRepo   repo.SessionRepository
	userRepo repo.UserRepository
	q        *queue.AdmissionQueue
	tm       *timers.Registry
	l        logger.Logger
}

func NewAssignmentService(
	ssRepo repo.SessionRepository,
	userRepo repo.UserRepository,
	q *queue.AdmissionQueue,
	tm *timers.Registry,
	l logger.Logger,
) AssignmentService {
	return &assignmentService{
		ssRepo:   ssRepo,
		userRepo: userRepo,
		q:        q,
		tm:       tm,
		l:        l,
	}
}

func (s *assignmentService) Assign(ctx context.Context, ssID, operator string) (*models.Session, error) {
	op, err := s.userRepo.Get(ctx, operator)
	if err != nil {
		if err == redis.Nil {
			return nil, ErrOperatorNotFound
		}
		return nil, err
	}
	if !op.IsOperator() {
		return nil, ErrOperatorNotFound
	}

	ss, err := s.ssRepo.Get(ctx, ssID)
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if !ss.IsWaiting() {
		return nil, ErrStateConflict
	}

	now := time.Now()
	ss.OperatorID = op.Username
	ss.Status = models.SessionStatusActive
	ss.StartedAt = &now

	if err := s.ssRepo.Update(ctx, ss); err != nil {
		s.l.Errorf(ctx, "assignmentService.Assign: %v", err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	// Queue entry goes only after the transition is durable; Remove is a
	// no-op when ProcessNext already popped the ID.
	s.q.Remove(ssID)
	s.tm.Start(ssID, now)

	s.l.Infof(ctx, "Operator assigned: session_id=%s operator=%s", ssID, op.Username)

	return ss, nil
}

func (s *assignmentService) AutoAssign(ctx context.Context, ssID string) (*models.Session, error) {
	operators, err := s.userRepo.FindAvailableOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find available operators: %w", err)
	}

	if len(operators) == 0 {
		s.l.Warnf(ctx, "No operator available: session_id=%s", ssID)
		return nil, ErrNoOperatorAvailable
	}

	// Least loaded wins; ties go to whichever operator the availability
	// query returned first.
	var selected *models.User
	var selectedCount int64
	for _, op := range operators {
		count, err := s.ssRepo.CountActiveByOperator(ctx, op.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to count active sessions: %w", err)
		}
		if selected == nil || count < selectedCount {
			selected = op
			selectedCount = count
		}
	}

	s.l.Infof(ctx, "Auto-assign selected operator: session_id=%s operator=%s active_sessions=%d",
		ssID, selected.Username, selectedCount)

	return s.Assign(ctx, ssID, selected.Username)
}

func (s *assignmentService) ProcessNext(ctx context.Context) (*models.Session, bool, error) {
	ssID, ok := s.q.DequeueNext()
	if !ok {
		s.l.Debugf(ctx, "No waiting session to process")
		return nil, false, nil
	}

	ss, err := s.AutoAssign(ctx, ssID)
	if err != nil {
		if errors.Is(err, ErrNoOperatorAvailable) {
			// Back of the line; original arrival order is explicitly not
			// preserved on this path.
			s.q.Enqueue(ssID)
			s.l.Warnf(ctx, "Re-enqueued session after failed assignment: session_id=%s", ssID)
		} else if cur, getErr := s.ssRepo.Get(ctx, ssID); getErr == nil && cur.IsWaiting() {
			// Other failures put the ID back only when the session is
			// confirmed still waiting; a session that was assigned or ended
			// concurrently must not re-enter the queue.
			s.q.Enqueue(ssID)
			s.l.Warnf(ctx, "Re-enqueued still-waiting session after error: session_id=%s: %v", ssID, err)
		}
		return nil, false, err
	}

	return ss, true, nil
}
