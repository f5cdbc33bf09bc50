package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wandertrails/tourism-api/config"
)

// InitRedis connects to Redis and verifies the connection with a ping.
func InitRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Repositories.Redis.Addr,
		Password: cfg.Repositories.Redis.Password,
		DB:       cfg.Repositories.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Repositories.Redis.Addr, err)
	}

	logger.Info("Redis connection established", slog.String("addr", cfg.Repositories.Redis.Addr))
	return client, nil
}
