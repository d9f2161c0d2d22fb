package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

// MessageRepository keeps the per-session transcript as an append-only list.
type MessageRepository interface {
	Append(ctx context.Context, m *models.Message) error
	List(ctx context.Context, ssID string) ([]*models.Message, error)
}

type redisMessageRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisMessageRepository(cli *redis.Client, l logger.Logger) MessageRepository {
	return &redisMessageRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisMessageRepository) Append(ctx context.Context, m *models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.cli.RPush(ctx, r.messagesKey(m.SessionID), data).Err(); err != nil {
		r.l.Errorf(ctx, "redisMessageRepository.Append: %v", err)
		return err
	}

	return nil
}

func (r *redisMessageRepository) List(ctx context.Context, ssID string) ([]*models.Message, error) {
	entries, err := r.cli.LRange(ctx, r.messagesKey(ssID), 0, -1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisMessageRepository.List: %v", err)
		return nil, err
	}

	messages := make([]*models.Message, 0, len(entries))
	for _, entry := range entries {
		var m models.Message
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			r.l.Errorf(ctx, "redisMessageRepository.List: %v", err)
			return nil, err
		}
		messages = append(messages, &m)
	}

	return messages, nil
}

func (r *redisMessageRepository) messagesKey(ssID string) string {
	return fmt.Sprintf("supportdesk:session:%s:messages", ssID)
}
