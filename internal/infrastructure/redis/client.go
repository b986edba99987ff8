package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/botfleet/internal/config"
)

// NewClient connects the status mirror's Redis. The connection is named
// after the key prefix so the supervisor shows up in CLIENT LIST.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goRedis.Client, error) {
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if name := strings.Trim(cfg.KeyPrefix, ":"); name != "" {
		opts.ClientName = name
	}
	// status transitions must not wait on a slow Redis
	opts.DialTimeout = 3 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := goRedis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(err, client.Close())
	}
	return client, nil
}
