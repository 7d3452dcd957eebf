package buffer

import (
	"context"
	"fmt"

	"hist-go/internal/config"
)

// NewChangeBufferFromConfig creates a change buffer based on the buffer config type.
func NewChangeBufferFromConfig(ctx context.Context, cfg config.BufferConfig) (*Buffer, error) {
	maxChanges := cfg.MaxChanges
	if maxChanges <= 0 {
		maxChanges = config.DefaultMaxBufferedChanges
	}

	switch cfg.Type {
	case "memory":
		return NewMemoryChangeBuffer(maxChanges), nil
	case "filesystem":
		if cfg.BufferDir == "" {
			return nil, fmt.Errorf("filesystem buffer requires buffer_dir to be set")
		}
		return NewFileSystemChangeBuffer(cfg.BufferDir, maxChanges)
	case "badger":
		if cfg.BufferDir == "" {
			return nil, fmt.Errorf("badger buffer requires buffer_dir to be set")
		}
		return NewBadgerChangeBuffer(cfg.BufferDir, maxChanges)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis buffer requires redis_addr to be set")
		}
		return NewRedisChangeBuffer(ctx, RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB}, maxChanges)
	default:
		return nil, fmt.Errorf("unknown buffer type: %s", cfg.Type)
	}
}
