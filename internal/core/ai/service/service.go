// Package service fronts a chat provider with response caching and
// request pacing.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"recipe-recommender/internal/core/ai/cache"
	"recipe-recommender/internal/core/ai/provider"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options AI 服務選項
type Options struct {
	// RequestsPerSecond 小於等於 0 時不限速
	RequestsPerSecond float64
}

// Service AI 服務
type Service struct {
	provider provider.Provider
	cache    cache.Store
	limiter  *rate.Limiter
}

// NewService 創建 AI 服務，store 為 nil 時不緩存
func NewService(p provider.Provider, store cache.Store, opts Options) *Service {
	if store == nil {
		store = cache.Disabled{}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Service{
		provider: p,
		cache:    store,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Complete 先查緩存，未命中時等待配額後呼叫提供者
func (s *Service) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	key := s.cacheKey(req)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var cached provider.Response
		if err := json.Unmarshal(data, &cached); err == nil {
			common.LogCacheHit("chat")
			cached.CacheHit = true
			return &cached, nil
		}
	} else if errors.Is(err, common.ErrCacheMiss) {
		common.LogCacheMiss("chat")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ai: waiting for request slot: %w", err)
	}

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, data); err != nil && !errors.Is(err, common.ErrCacheFull) {
			common.LogWarn("寫入對話緩存失敗", zap.Error(err))
		}
	}
	return resp, nil
}

// Model 返回底層模型名稱
func (s *Service) Model() string {
	return s.provider.GetModel()
}

// Close 關閉提供者
func (s *Service) Close() error {
	return s.provider.Close()
}

// cacheKey 以模型、參數與訊息內容組成緩存鍵，空白差異不影響命中
func (s *Service) cacheKey(req *provider.Request) string {
	parts := []string{
		s.provider.GetModel(),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		strconv.Itoa(req.MaxTokens),
	}
	for _, m := range req.Messages {
		parts = append(parts, m.Role, strings.Join(strings.Fields(m.Content), " "))
	}
	return cache.Key("chat", parts...)
}
