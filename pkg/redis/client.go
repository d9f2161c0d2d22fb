package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/ezlevup/supportdesk/config"
)

// Nil mirrors go-redis' key-missing sentinel so callers don't need a second
// redis import just for the comparison.
const Nil = redis.Nil

func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	return client, nil
}
