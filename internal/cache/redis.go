package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crjyouth/libris/internal/config"
)

// RedisClient is the shared Redis client, set by ConnectRedis.
var RedisClient *redis.Client

// ConnectRedis establishes a connection to Redis and verifies it with a ping.
func ConnectRedis(cfg *config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	RedisClient = client
	slog.Info("redis connection established", "addr", cfg.Address(), "db", cfg.DB)
	return nil
}
