package api

import (
	"time"

	"recipe-recommender/internal/api/handlers/admin"
	"recipe-recommender/internal/api/handlers/health"
	pantryHandler "recipe-recommender/internal/api/handlers/pantry"
	"recipe-recommender/internal/api/handlers/rag"
	recipeHandler "recipe-recommender/internal/api/handlers/recipe"
	"recipe-recommender/internal/api/middleware"
	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Index 向量索引的管理與就緒檢查
type Index interface {
	admin.Collection
	health.IndexChecker
}

// Dependencies 路由所需的服務
type Dependencies struct {
	Recommender rag.Recommender
	Pantry      pantryHandler.Service
	Queue       admin.Queue
	Ingester    admin.Ingester
	Embedder    admin.Embedder
	Index       Index
	Catalog     Catalog
}

// Catalog 食譜目錄：連線檢查與唯讀查詢
type Catalog interface {
	health.Pinger
	recipeHandler.Catalog
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg.App.Version, deps.Catalog, deps.Index, deps.Queue)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/live", healthHandler.Live)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	{
		ragHandler := rag.NewHandler(deps.Recommender, cfg.Ranking.MaxTopK, cfg.App.Debug)
		api.POST("/rag/recommend", ragHandler.Recommend)

		recipes := recipeHandler.NewHandler(deps.Catalog, cfg.App.Debug)
		api.GET("/recipes/:id", recipes.Get)

		pantry := pantryHandler.NewHandler(deps.Pantry, cfg.App.Debug)
		pantryGroup := api.Group("/pantry/:user_id")
		{
			pantryGroup.POST("/ingredients", pantry.AddIngredient)
			pantryGroup.GET("/ingredients", pantry.List)
		}

		adminHandler := admin.NewHandler(deps.Queue, deps.Ingester, deps.Embedder, deps.Index, admin.Options{
			Dimension:    cfg.Embedding.Dimension,
			BatchSize:    cfg.Embedding.BatchSize,
			SeedKeywords: cfg.Source.SeedKeywords,
			Debug:        cfg.App.Debug,
		})
		adminGroup := api.Group("/admin")
		adminGroup.Use(middleware.Deduplication(middleware.NewDeduplicator(cfg.DedupWindow)))
		{
			adminGroup.POST("/ingest", adminHandler.Ingest)
			adminGroup.POST("/embed", adminHandler.Embed)
			adminGroup.POST("/collection", adminHandler.Collection)
			adminGroup.GET("/tasks/:id", adminHandler.Task)
			adminGroup.GET("/queue", adminHandler.QueueStatus)
			adminGroup.GET("/stats", recipes.Stats)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router
}
