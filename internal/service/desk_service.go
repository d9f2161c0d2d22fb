package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ezlevup/supportdesk/internal/kafka"
	"github.com/ezlevup/supportdesk/internal/models"
	repo "github.com/ezlevup/supportdesk/internal/repository/redis"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

// DeskService is the single entry point the delivery layer talks to. It
// composes the session lifecycle, assignment and transcript services and
// publishes a Kafka event after every durable transition. Publish failures
// are logged and swallowed: the store is the source of truth, the events
// are best-effort notification.
type DeskService interface {
	OpenSession(ctx context.Context, in OpenSessionInput) (*OpenSessionOutput, error)
	GetSession(ctx context.Context, ssID string) (*SessionDetailOutput, error)
	AssignOperator(ctx context.Context, ssID, operator string) (*models.Session, error)
	ProcessNextWaiting(ctx context.Context) (*ProcessNextOutput, error)
	EndSession(ctx context.Context, ssID string) (*models.Session, error)
	ListWaiting(ctx context.Context) (*WaitingListOutput, error)
	ListOperatorSessions(ctx context.Context, operator string) ([]*models.Session, error)
	PostMessage(ctx context.Context, in PostMessageInput) (*models.Message, error)
	ListMessages(ctx context.Context, ssID string) ([]*models.Message, error)
	ReaperStatus() ReaperStatus
}

type deskService struct {
	ssSvc   SessionService
	asSvc   AssignmentService
	userSvc UserService
	msgRepo repo.MessageRepository
	prod    kafka.Producer
	rp      Reaper
	l       logger.Logger
}

func NewDeskService(
	ssSvc SessionService,
	asSvc AssignmentService,
	userSvc UserService,
	msgRepo repo.MessageRepository,
	prod kafka.Producer,
	rp Reaper,
	l logger.Logger,
) DeskService {
	return &deskService{
		ssSvc:   ssSvc,
		asSvc:   asSvc,
		userSvc: userSvc,
		msgRepo: msgRepo,
		prod:    prod,
		rp:      rp,
		l:       l,
	}
}

func (s *deskService) OpenSession(ctx context.Context, in OpenSessionInput) (*OpenSessionOutput, error) {
	customer, err := s.userSvc.Get(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	ss, err := s.ssSvc.Create(ctx, customer.Username, in.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.prod != nil {
		if err := s.prod.PublishSessionCreated(ctx, kafka.SessionCreatedEvent{
			SessionID:  ss.ID,
			CustomerID: ss.CustomerID,
			QueueSize:  s.ssSvc.QueueSize(),
			CreatedAt:  ss.CreatedAt,
		}); err != nil {
			s.l.Errorf(ctx, "Failed to publish session created event: session_id=%s: %v", ss.ID, err)
		}
	}

	return &OpenSessionOutput{
		SessionID: ss.ID,
		Status:    string(ss.Status),
		QueueSize: s.ssSvc.QueueSize(),
		CreatedAt: ss.CreatedAt,
	}, nil
}

func (s *deskService) GetSession(ctx context.Context, ssID string) (*SessionDetailOutput, error) {
	ss, err := s.ssSvc.Get(ctx, ssID)
	if err != nil {
		return nil, err
	}

	return &SessionDetailOutput{
		Session: ss,
		Expired: s.ssSvc.IsExpired(ssID),
	}, nil
}

func (s *deskService) AssignOperator(ctx context.Context, ssID, operator string) (*models.Session, error) {
	ss, err := s.asSvc.Assign(ctx, ssID, operator)
	if err != nil {
		return nil, err
	}

	s.afterAssignment(ctx, ss)

	return ss, nil
}

func (s *deskService) ProcessNextWaiting(ctx context.Context) (*ProcessNextOutput, error) {
	ss, processed, err := s.asSvc.ProcessNext(ctx)
	if err != nil {
		return nil, err
	}
	if !processed {
		return &ProcessNextOutput{Processed: false}, nil
	}

	s.afterAssignment(ctx, ss)

	return &ProcessNextOutput{Processed: true, Session: ss}, nil
}

func (s *deskService) afterAssignment(ctx context.Context, ss *models.Session) {
	if s.prod != nil {
		if err := s.prod.PublishSessionAssigned(ctx, kafka.SessionAssignedEvent{
			SessionID:  ss.ID,
			CustomerID: ss.CustomerID,
			OperatorID: ss.OperatorID,
			StartedAt:  *ss.StartedAt,
		}); err != nil {
			s.l.Errorf(ctx, "Failed to publish session assigned event: session_id=%s: %v", ss.ID, err)
		}
	}

	s.appendSystemMessage(ctx, ss.ID,
		fmt.Sprintf("Operator %s joined the consultation", ss.OperatorID))
}

func (s *deskService) EndSession(ctx context.Context, ssID string) (*models.Session, error) {
	ss, err := s.ssSvc.End(ctx, ssID)
	if err != nil {
		return nil, err
	}

	if s.prod != nil {
		if err := s.prod.PublishSessionEnded(ctx, kafka.SessionEndedEvent{
			SessionID:  ss.ID,
			CustomerID: ss.CustomerID,
			OperatorID: ss.OperatorID,
			Reason:     kafka.EndReasonManual,
			EndedAt:    *ss.EndedAt,
		}); err != nil {
			s.l.Errorf(ctx, "Failed to publish session ended event: session_id=%s: %v", ss.ID, err)
		}
	}

	s.appendSystemMessage(ctx, ss.ID, "The consultation has ended")

	return ss, nil
}

func (s *deskService) ListWaiting(ctx context.Context) (*WaitingListOutput, error) {
	sessions, err := s.ssSvc.FindWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting sessions: %w", err)
	}

	return &WaitingListOutput{
		Sessions:  sessions,
		QueueSize: s.ssSvc.QueueSize(),
	}, nil
}

func (s *deskService) ListOperatorSessions(ctx context.Context, operator string) ([]*models.Session, error) {
	op, err := s.userSvc.Get(ctx, operator)
	if err != nil {
		return nil, err
	}
	if !op.IsOperator() {
		return nil, ErrOperatorNotFound
	}

	return s.ssSvc.FindActiveByOperator(ctx, op.Username)
}

func (s *deskService) PostMessage(ctx context.Context, in PostMessageInput) (*models.Message, error) {
	ss, err := s.ssSvc.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	if ss.IsEnded() {
		return nil, ErrSessionEnded
	}

	if !ss.HasParticipant(in.Sender) {
		return nil, ErrNotParticipant
	}

	m := &models.Message{
		ID:        uuid.New().String(),
		SessionID: in.SessionID,
		Sender:    in.Sender,
		Type:      models.MessageTypeChat,
		Content:   in.Content,
		SentAt:    time.Now(),
	}

	if err := s.msgRepo.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	return m, nil
}

func (s *deskService) ListMessages(ctx context.Context, ssID string) ([]*models.Message, error) {
	if _, err := s.ssSvc.Get(ctx, ssID); err != nil {
		return nil, err
	}

	return s.msgRepo.List(ctx, ssID)
}

func (s *deskService) ReaperStatus() ReaperStatus {
	if s.rp == nil {
		return ReaperStatus{IsRunning: false}
	}
	return s.rp.Status()
}

// appendSystemMessage records a transcript marker for a lifecycle event.
// Failures are logged only; transcripts are advisory.
func (s *deskService) appendSystemMessage(ctx context.Context, ssID, content string) {
	m := &models.Message{
		ID:        uuid.New().String(),
		SessionID: ssID,
		Sender:    "system",
		Type:      models.MessageTypeSystem,
		Content:   content,
		SentAt:    time.Now(),
	}

	if err := s.msgRepo.Append(ctx, m); err != nil {
		s.l.Errorf(ctx, "Failed to append system message: session_id=%s: %v", ssID, err)
	}
}
