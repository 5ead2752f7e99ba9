package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "recipe-recommender:"

// Service Redis 緩存服務
type Service struct {
	client *redis.Client
	ttl    time.Duration
}

// NewService 連線 Redis 並建立緩存服務
func NewService(ctx context.Context, cfg config.CacheConfig, redisCfg config.RedisConfig) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewServiceWithClient(client, cfg.TTL), nil
}

// NewServiceWithClient 以既有客戶端建立緩存服務
func NewServiceWithClient(client *redis.Client, ttl time.Duration) *Service {
	return &Service{client: client, ttl: ttl}
}

// Get 獲取緩存
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			common.LogCacheMiss("redis")
			return nil, common.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}

	common.LogCacheHit("redis")
	return data, nil
}

// Set 設置緩存
func (s *Service) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Ping 檢查 Redis 連線
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 關閉連線
func (s *Service) Close() error {
	return s.client.Close()
}
