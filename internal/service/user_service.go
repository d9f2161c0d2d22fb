package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ezlevup/supportdesk/config"
	"github.com/ezlevup/supportdesk/internal/models"
	repo "github.com/ezlevup/supportdesk/internal/repository/redis"
	"github.com/ezlevup/supportdesk/pkg/logger"
	"github.com/ezlevup/supportdesk/pkg/redis"
)

type UserService interface {
	RegisterCustomer(ctx context.Context, nickname string) (*models.User, error)
	RegisterOperator(ctx context.Context, username, nickname string) (*models.User, error)
	Get(ctx context.Context, username string) (*models.User, error)
	SetStatus(ctx context.Context, username string, status models.UserStatus) (*models.User, error)
	FindAvailableOperators(ctx context.Context) ([]*models.User, error)
	GenerateToken(ctx context.Context, u *models.User) (string, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

type userService struct {
	repo repo.UserRepository
	conf config.JWTConfig
	l    logger.Logger
}

func NewUserService(repo repo.UserRepository, conf config.JWTConfig, l logger.Logger) UserService {
	return &userService{
		repo: repo,
		conf: conf,
		l:    l,
	}
}

// RegisterCustomer creates a throwaway customer identity with a generated
// username. Customers come and go; operators are registered explicitly.
func (s *userService) RegisterCustomer(ctx context.Context, nickname string) (*models.User, error) {
	now := time.Now()
	u := &models.User{
		Username:  "customer_" + uuid.New().String()[:8],
		Nickname:  nickname,
		Role:      models.UserRoleCustomer,
		Status:    models.UserStatusOnline,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		s.l.Errorf(ctx, "userService.RegisterCustomer: %v", err)
		return nil, err
	}

	return u, nil
}

func (s *userService) RegisterOperator(ctx context.Context, username, nickname string) (*models.User, error) {
	exists, err := s.repo.Exists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	now := time.Now()
	u := &models.User{
		Username:  username,
		Nickname:  nickname,
		Role:      models.UserRoleOperator,
		Status:    models.UserStatusOnline,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		s.l.Errorf(ctx, "userService.RegisterOperator: %v", err)
		return nil, err
	}

	s.l.Infof(ctx, "Operator registered: username=%s", username)

	return u, nil
}

func (s *userService) Get(ctx context.Context, username string) (*models.User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		if err == redis.Nil {
			return nil, ErrUserNotFound
		}
		s.l.Errorf(ctx, "userService.Get: %v", err)
		return nil, err
	}

	return u, nil
}

func (s *userService) SetStatus(ctx context.Context, username string, status models.UserStatus) (*models.User, error) {
	u, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	u.Status = status

	if err := s.repo.Update(ctx, u); err != nil {
		s.l.Errorf(ctx, "userService.SetStatus: %v", err)
		return nil, err
	}

	s.l.Infof(ctx, "User status updated: username=%s status=%s", username, status)

	return u, nil
}

func (s *userService) FindAvailableOperators(ctx context.Context) ([]*models.User, error) {
	return s.repo.FindAvailableOperators(ctx)
}

func (s *userService) GenerateToken(ctx context.Context, u *models.User) (string, error) {
	expAt := time.Now().Add(s.conf.Expiry)

	claims := jwt.MapClaims{
		"username": u.Username,
		"role":     string(u.Role),
		"exp":      expAt.Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(s.conf.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenStr, nil
}

func (s *userService) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrTokenEmpty
	}

	claims := jwt.MapClaims{}
	parsedToken, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(s.conf.Secret), nil
	})
	if err != nil {
		s.l.Warnf(ctx, "Invalid JWT token: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	username, ok := claims["username"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return s.Get(ctx, username)
}
