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

// UserRepository stores customer and operator records, plus the ONLINE
// operator index used by auto assignment. FindAvailableOperators returns
// operators ordered by when they came online, which fixes the tie-break
// order for least-loaded assignment.
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Exists(ctx context.Context, username string) (bool, error)
	FindAvailableOperators(ctx context.Context) ([]*models.User, error)
}

type redisUserRepository struct {
	cli *redis.Client
	l   logger.Logger
}

func NewRedisUserRepository(cli *redis.Client, l logger.Logger) UserRepository {
	return &redisUserRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisUserRepository) Create(ctx context.Context, u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	pipe := r.cli.Pipeline()
	pipe.Set(ctx, r.userKey(u.Username), data, 0)
	if u.IsAvailable() {
		pipe.ZAdd(ctx, r.onlineOperatorsKey(), redis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: u.Username,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Create: %v", err)
		return err
	}

	r.l.Debugf(ctx, "User created: username=%s role=%s", u.Username, u.Role)

	return nil
}

func (r *redisUserRepository) Get(ctx context.Context, username string) (*models.User, error) {
	data, err := r.cli.Get(ctx, r.userKey(username)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.l.Errorf(ctx, "redisUserRepository.Get: %v", err)
		}
		return nil, err
	}

	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Get: %v", err)
		return nil, err
	}

	return &u, nil
}

func (r *redisUserRepository) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()

	data, err := json.Marshal(u)
	if err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Update: %v", err)
		return err
	}

	pipe := r.cli.Pipeline()
	pipe.Set(ctx, r.userKey(u.Username), data, 0)

	// The ZAdd GT/NX subtleties don't matter here: re-adding an online
	// operator refreshes its score, so going offline and back online moves
	// the operator to the end of the availability order.
	if u.IsAvailable() {
		pipe.ZAdd(ctx, r.onlineOperatorsKey(), redis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: u.Username,
		})
	} else {
		pipe.ZRem(ctx, r.onlineOperatorsKey(), u.Username)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Update: %v", err)
		return err
	}

	return nil
}

func (r *redisUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	n, err := r.cli.Exists(ctx, r.userKey(username)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisUserRepository.Exists: %v", err)
		return false, err
	}
	return n > 0, nil
}

func (r *redisUserRepository) FindAvailableOperators(ctx context.Context) ([]*models.User, error) {
	usernames, err := r.cli.ZRange(ctx, r.onlineOperatorsKey(), 0, -1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisUserRepository.FindAvailableOperators: %v", err)
		return nil, err
	}

	operators := make([]*models.User, 0, len(usernames))
	for _, username := range usernames {
		u, err := r.Get(ctx, username)
		if err != nil {
			if err == redis.Nil {
				r.l.Warnf(ctx, "Online index entry without user record: username=%s", username)
				continue
			}
			return nil, err
		}
		if u.IsAvailable() {
			operators = append(operators, u)
		}
	}

	return operators, nil
}

func (r *redisUserRepository) userKey(username string) string {
	return fmt.Sprintf("supportdesk:user:%s", username)
}

func (r *redisUserRepository) onlineOperatorsKey() string {
	return "supportdesk:operators:online"
}
