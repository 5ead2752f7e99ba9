// Package cache keeps short-lived results (query vectors, chat completions)
// in process memory or Redis behind one Store interface.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/pkg/common"
)

// Store 緩存後端
type Store interface {
	// Get 未命中時返回 common.ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Key 以命名空間與內容雜湊產生緩存鍵
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return fmt.Sprintf("%s:%s", namespace, hex.EncodeToString(hash[:]))
}

// New 依設定建立緩存後端，停用時返回 Disabled
func New(ctx context.Context, cfg config.CacheConfig, redisCfg config.RedisConfig) (Store, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	switch cfg.Backend {
	case "redis":
		return NewService(ctx, cfg, redisCfg)
	default:
		return NewManager(cfg), nil
	}
}

// Disabled 不做任何緩存
type Disabled struct{}

// Get 永遠返回 ErrCacheDisabled
func (Disabled) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, common.ErrCacheDisabled
}

// Set 略過
func (Disabled) Set(ctx context.Context, key string, value []byte) error {
	return nil
}

// Close 略過
func (Disabled) Close() error {
	return nil
}
