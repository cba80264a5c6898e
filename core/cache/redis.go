package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/stickerbot/core/logger"
)

// Config describes how to reach Redis. An empty URL disables Redis entirely.
type Config struct {
	URL    string `yaml:"url" envconfig:"REDIS_URL"`
	Prefix string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// Enabled reports whether a Redis URL was configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Connect parses the URL, creates a client and verifies it with PING.
func Connect(cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error(ctx, "cache", "redis.connect",
			slog.String("status", "fail"),
			slog.String("host", opts.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "cache", "redis.connect",
		slog.String("status", "ok"),
		slog.String("host", opts.Addr),
		slog.Int("db", opts.DB),
		slog.Duration("duration", time.Since(start)),
	)
	return client, nil
}

// Key joins parts with ':' under the optional prefix.
func Key(prefix string, parts ...string) string {
	if prefix == "" {
		return strings.Join(parts, ":")
	}
	return prefix + ":" + strings.Join(parts, ":")
}
