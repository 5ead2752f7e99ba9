package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"recipe-recommender/internal/core/ai/cache"
	"recipe-recommender/internal/infrastructure/resilience"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// Encoder 將文字批次轉為向量
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// LazyEncoder 第一次使用時才建立底層編碼器，之後整個行程共用
type LazyEncoder struct {
	build     func() (Encoder, error)
	dimension int

	once    sync.Once
	encoder Encoder
	err     error
}

// NewLazyEncoder 以建構函式建立延遲編碼器
func NewLazyEncoder(dimension int, build func() (Encoder, error)) *LazyEncoder {
	return &LazyEncoder{build: build, dimension: dimension}
}

func (l *LazyEncoder) get() (Encoder, error) {
	l.once.Do(func() {
		l.encoder, l.err = l.build()
		if l.err != nil {
			common.LogError("嵌入模型初始化失敗", zap.Error(l.err))
			return
		}
		common.LogInfo("嵌入模型已載入", zap.Int("dimension", l.encoder.Dimension()))
	})
	return l.encoder, l.err
}

// Encode 轉為向量
func (l *LazyEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	enc, err := l.get()
	if err != nil {
		return nil, fmt.Errorf("encoder unavailable: %w", err)
	}
	return enc.Encode(ctx, texts)
}

// Dimension 返回向量維度（尚未建立時使用設定值）
func (l *LazyEncoder) Dimension() int {
	if l.dimension > 0 {
		return l.dimension
	}
	enc, err := l.get()
	if err != nil {
		return 0
	}
	return enc.Dimension()
}

// BreakerEncoder 以斷路器保護編碼器呼叫
type BreakerEncoder struct {
	next    Encoder
	breaker *resilience.Breaker
}

// NewBreakerEncoder 創建斷路器編碼器
func NewBreakerEncoder(next Encoder, cfg resilience.BreakerConfig) *BreakerEncoder {
	return &BreakerEncoder{next: next, breaker: resilience.NewBreaker("encoder", cfg)}
}

// Encode 轉為向量
func (b *BreakerEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.Execute(b.breaker, func() ([][]float32, error) {
		return b.next.Encode(ctx, texts)
	})
}

// Dimension 返回向量維度
func (b *BreakerEncoder) Dimension() int {
	return b.next.Dimension()
}

// QueryEncoder 查詢向量緩存，相同查詢字串重用向量
type QueryEncoder struct {
	next      Encoder
	store     cache.Store
	namespace string
}

// NewQueryEncoder 創建查詢編碼器，namespace 通常為模型名稱
func NewQueryEncoder(next Encoder, store cache.Store, namespace string) *QueryEncoder {
	if store == nil {
		store = cache.Disabled{}
	}
	return &QueryEncoder{next: next, store: store, namespace: namespace}
}

// EncodeQuery 轉換單一查詢字串
func (q *QueryEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key("qvec", q.namespace, text)

	if data, err := q.store.Get(ctx, key); err == nil {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if !errors.Is(err, common.ErrCacheMiss) && !errors.Is(err, common.ErrCacheDisabled) {
		common.LogWarn("查詢向量緩存讀取失敗", zap.Error(err))
	}

	vecs, err := q.next.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 vector, got %d", len(vecs))
	}

	if data, err := json.Marshal(vecs[0]); err == nil {
		if err := q.store.Set(ctx, key, data); err != nil {
			common.LogWarn("查詢向量緩存寫入失敗", zap.Error(err))
		}
	}
	return vecs[0], nil
}

// Encode 批次轉換（不經緩存）
func (q *QueryEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return q.next.Encode(ctx, texts)
}

// Dimension 返回向量維度
func (q *QueryEncoder) Dimension() int {
	return q.next.Dimension()
}
