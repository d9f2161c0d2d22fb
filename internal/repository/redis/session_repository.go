package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

// SessionRepository is the durable session store. Writes are per-entity
// atomic (pipelined with their index updates); state-machine checks stay in
// the service layer.
type SessionRepository interface {
	Create(ctx context.Context, ss *models.Session) error
	Get(ctx context.Context, ssID string) (*models.Session, error)
	Update(ctx context.Context, ss *models.Session) error
	Exists(ctx context.Context, ssID string) (bool, error)
	FindByStatus(ctx context.Context, status models.SessionStatus) ([]*models.Session, error)
	FindActiveByOperator(ctx context.Context, operator string) ([]*models.Session, error)
	CountActiveByOperator(ctx context.Context, operator string) (int64, error)
}

type redisSessionRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisSessionRepository(cli *redis.Client, l logger.Logger) SessionRepository {
	return &redisSessionRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisSessionRepository) Create(ctx context.Context, ss *models.Session) error {
	data, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.cli.Pipeline()
	pipe.Set(ctx, r.sessionKey(ss.ID), data, 0)
	pipe.ZAdd(ctx, r.statusKey(ss.Status), redis.Z{
		Score:  float64(ss.CreatedAt.UnixMilli()),
		Member: ss.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Create: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Session created: session_id=%s customer=%s", ss.ID, ss.CustomerID)

	return nil
}

func (r *redisSessionRepository) Get(ctx context.Context, ssID string) (*models.Session, error) {
	data, err := r.cli.Get(ctx, r.sessionKey(ssID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.l.Errorf(ctx, "redisSessionRepository.Get: %v", err)
		}
		return nil, err
	}

	var ss models.Session
	if err := json.Unmarshal(data, &ss); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Get: %v", err)
		return nil, err
	}

	return &ss, nil
}

// Update persists the session and moves its status and operator indexes to
// match. Index moves are derived from the previously stored record, so
// callers only hand in the new state.
func (r *redisSessionRepository) Update(ctx context.Context, ss *models.Session) error {
	prev, err := r.Get(ctx, ss.ID)
	if err != nil {
		return err
	}

	ss.UpdatedAt = time.Now()

	data, err := json.Marshal(ss)
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Update: %v", err)
		return err
	}

	pipe := r.cli.Pipeline()
	pipe.Set(ctx, r.sessionKey(ss.ID), data, 0)

	if prev.Status != ss.Status {
		pipe.ZRem(ctx, r.statusKey(prev.Status), ss.ID)
		pipe.ZAdd(ctx, r.statusKey(ss.Status), redis.Z{
			Score:  r.statusScore(ss),
			Member: ss.ID,
		})
	}

	// Operator active-session index: membership tracks ACTIVE status only,
	// so the derived load count is never stale.
	if ss.OperatorID != "" {
		switch {
		case ss.Status == models.SessionStatusActive && prev.Status != models.SessionStatusActive:
			pipe.SAdd(ctx, r.operatorActiveKey(ss.OperatorID), ss.ID)
		case ss.Status != models.SessionStatusActive && prev.Status == models.SessionStatusActive:
			pipe.SRem(ctx, r.operatorActiveKey(ss.OperatorID), ss.ID)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Update: %v", err)
		return err
	}

	return nil
}

func (r *redisSessionRepository) Exists(ctx context.Context, ssID string) (bool, error) {
	n, err := r.cli.Exists(ctx, r.sessionKey(ssID)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.Exists: %v", err)
		return false, err
	}
	return n > 0, nil
}

// FindByStatus returns sessions in the given status ordered by the time they
// entered it (creation time for waiting sessions, which is also the order
// the admission queue is rebuilt in at startup).
func (r *redisSessionRepository) FindByStatus(ctx context.Context, status models.SessionStatus) ([]*models.Session, error) {
	ids, err := r.cli.ZRange(ctx, r.statusKey(status), 0, -1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.FindByStatus: %v", err)
		return nil, err
	}

	return r.getAll(ctx, ids)
}

func (r *redisSessionRepository) FindActiveByOperator(ctx context.Context, operator string) ([]*models.Session, error) {
	ids, err := r.cli.SMembers(ctx, r.operatorActiveKey(operator)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.FindActiveByOperator: %v", err)
		return nil, err
	}

	return r.getAll(ctx, ids)
}

func (r *redisSessionRepository) CountActiveByOperator(ctx context.Context, operator string) (int64, error) {
	count, err := r.cli.SCard(ctx, r.operatorActiveKey(operator)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSessionRepository.CountActiveByOperator: %v", err)
		return 0, err
	}
	return count, nil
}

func (r *redisSessionRepository) getAll(ctx context.Context, ids []string) ([]*models.Session, error) {
	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		ss, err := r.Get(ctx, id)
		if err != nil {
			if err == redis.Nil {
				// Index entry outlived the record; skip it.
				r.l.Warnf(ctx, "Session index entry without record: session_id=%s", id)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, nil
}

func (r *redisSessionRepository) statusScore(ss *models.Session) float64 {
	switch ss.Status {
	case models.SessionStatusActive:
		if ss.StartedAt != nil {
			return float64(ss.StartedAt.UnixMilli())
		}
	case models.SessionStatusEnded:
		if ss.EndedAt != nil {
			return float64(ss.EndedAt.UnixMilli())
		}
	}
	return float64(ss.CreatedAt.UnixMilli())
}

func (r *redisSessionRepository) sessionKey(ssID string) string {
	return fmt.Sprintf("supportdesk:session:%s", ssID)
}

func (r *redisSessionRepository) statusKey(status models.SessionStatus) string {
	return fmt.Sprintf("supportdesk:sessions:%s", status)
}

func (r *redisSessionRepository) operatorActiveKey(operator string) string {
	return fmt.Sprintf("supportdesk:operator:%s:active", operator)
}
