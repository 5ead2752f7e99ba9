// Package app wires the catalog, vector index, encoders and services from
// configuration so the HTTP server and the admin CLI share one setup.
package app

import (
	"context"
	"errors"
	"fmt"

	"recipe-recommender/internal/core/ai/cache"
	"recipe-recommender/internal/core/ai/gemini"
	"recipe-recommender/internal/core/ai/ollama"
	"recipe-recommender/internal/core/ai/openrouter"
	"recipe-recommender/internal/core/ai/provider"
	aiService "recipe-recommender/internal/core/ai/service"
	"recipe-recommender/internal/core/catalog"
	"recipe-recommender/internal/core/embedding"
	"recipe-recommender/internal/core/ingest"
	"recipe-recommender/internal/core/pantry"
	"recipe-recommender/internal/core/queue"
	"recipe-recommender/internal/core/recommend"
	"recipe-recommender/internal/core/rerank"
	"recipe-recommender/internal/core/retrieval"
	"recipe-recommender/internal/core/source"
	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/infrastructure/resilience"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// queryCacheNamespace 查詢向量緩存命名空間，更換模型或維度後舊向量不再命中
func queryCacheNamespace(cfg config.EmbeddingConfig) string {
	return fmt.Sprintf("query_vec:%s:%d", cfg.Model, cfg.Dimension)
}

// App 已組裝的服務
type App struct {
	Config    *config.Config
	Store     *catalog.Store
	Index     vectorindex.Index
	Cache     cache.Store
	Encoder   embedding.Encoder
	Generator *embedding.Generator
	Pipeline  *ingest.Pipeline
	Engine    *retrieval.Engine
	Recommend *recommend.Service
	Queue     *queue.Manager
	Pantry    *pantry.Service

	ai *aiService.Service
}

// New 依設定組裝所有服務，失敗時釋放已建立的資源
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Store, err = catalog.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	a.Index = newIndex(cfg)

	a.Cache, err = cache.New(ctx, cfg.Cache, cfg.Redis)
	if err != nil {
		common.LogWarn("緩存初始化失敗，停用緩存", zap.Error(err))
		a.Cache = cache.Disabled{}
	}

	a.Encoder = newEncoder(cfg)
	queryEncoder := embedding.NewQueryEncoder(a.Encoder, a.Cache, queryCacheNamespace(cfg.Embedding))

	a.Generator = embedding.NewGenerator(a.Store, a.Index, a.Encoder, cfg.Embedding.BatchSize)
	a.Pipeline = ingest.NewPipeline(source.NewFoodSafetyClient(source.Config{
		BaseURL:           cfg.Source.BaseURL,
		APIKey:            cfg.Source.APIKey,
		ServiceID:         cfg.Source.ServiceID,
		PageSize:          cfg.Source.PageSize,
		Timeout:           cfg.Source.Timeout,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		MaxRetries:        cfg.Source.MaxRetries,
	}), a.Store, a.Generator)

	a.Engine = retrieval.NewEngine(queryEncoder, a.Index, a.Store, retrieval.Options{
		TopK:        cfg.Ranking.TopK,
		MaxTopK:     cfg.Ranking.MaxTopK,
		Boost:       cfg.Ranking.Boost,
		Oversample:  cfg.Ranking.Oversample,
		MethodBonus: cfg.Ranking.MethodBonus,
		Overlap:     retrieval.OverlapStrategy(cfg.Ranking.OverlapStrategy),
	})

	var reranker recommend.Reranker
	if cfg.Rerank.Enabled {
		p, perr := newChatProvider(ctx, cfg)
		if perr != nil {
			// 沒有金鑰時仍提供純檢索推薦
			common.LogWarn("重排序模型不可用，僅使用檢索排序", zap.String("provider", cfg.Rerank.Provider), zap.Error(perr))
		} else {
			a.ai = aiService.NewService(p, a.Cache, aiService.Options{RequestsPerSecond: cfg.Rerank.RequestsPerSecond})
			reranker = rerank.NewAdapter(a.ai, rerank.Options{
				MaxCandidates: cfg.Rerank.MaxCandidates,
				MaxPicks:      cfg.Rerank.MaxPicks,
				Temperature:   cfg.Rerank.Temperature,
				MaxTokens:     cfg.OpenRouter.MaxTokens,
			})
		}
	}
	a.Recommend = recommend.NewService(a.Engine, reranker, a.Store, recommend.Options{Rerank: reranker != nil})

	a.Queue = queue.NewManager(cfg.Queue)
	a.Pantry = pantry.NewService(a.Store, a.Pipeline, a.Queue)

	common.LogInfo("服務組裝完成",
		zap.String("database", cfg.Database.Driver),
		zap.String("vector_index", cfg.VectorIndex.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Bool("rerank", reranker != nil),
	)
	return a, nil
}

func newIndex(cfg *config.Config) vectorindex.Index {
	if cfg.VectorIndex.Backend == "memory" {
		return vectorindex.NewMemoryIndex()
	}
	return vectorindex.NewQdrantClient(vectorindex.Config{
		URL:        cfg.VectorIndex.URL,
		APIKey:     cfg.VectorIndex.APIKey,
		Collection: cfg.VectorIndex.Collection,
		Timeout:    cfg.VectorIndex.Timeout,
		MaxRetries: cfg.VectorIndex.MaxRetries,
		Breaker:    cfg.VectorIndex.Breaker,
	})
}

// newEncoder 嵌入模型在第一次使用時才建立
func newEncoder(cfg *config.Config) embedding.Encoder {
	lazy := embedding.NewLazyEncoder(cfg.Embedding.Dimension, func() (embedding.Encoder, error) {
		common.LogInfo("載入嵌入模型",
			zap.String("url", cfg.Embedding.URL),
			zap.String("model", cfg.Embedding.Model),
		)
		return ollama.NewClient(ollama.Config{
			URL:       cfg.Embedding.URL,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
		}), nil
	})
	return embedding.NewBreakerEncoder(lazy, cfg.Embedding.Breaker)
}

func newChatProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Rerank.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, provider.Config{
			APIKey:    cfg.Gemini.APIKey,
			Model:     cfg.Gemini.Model,
			Timeout:   cfg.Gemini.Timeout,
			MaxTokens: cfg.OpenRouter.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		if cfg.OpenRouter.APIKey == "" {
			return nil, provider.ErrMissingAPIKey
		}
		return openrouter.NewClient(provider.Config{
			APIKey:    cfg.OpenRouter.APIKey,
			Model:     cfg.OpenRouter.Model,
			Timeout:   cfg.OpenRouter.Timeout,
			MaxTokens: cfg.OpenRouter.MaxTokens,
			BaseURL:   cfg.OpenRouter.BaseURL,
			Title:     cfg.App.Name,
		}, resilience.BreakerConfig{}), nil
	}
}

// Close 停止隊列並關閉連線
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	if a.ai != nil {
		errs = append(errs, a.ai.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
