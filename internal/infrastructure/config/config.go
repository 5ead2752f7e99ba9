package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"recipe-recommender/internal/infrastructure/resilience"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Source      SourceConfig      `mapstructure:"source"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorIndex VectorIndexConfig `mapstructure:"vector_index"`
	Ranking     RankingConfig     `mapstructure:"ranking"`
	Rerank      RerankConfig      `mapstructure:"rerank"`
	OpenRouter  OpenRouterConfig  `mapstructure:"openrouter"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	DedupWindow time.Duration     `mapstructure:"dedup_window"`
	LogLevel    string            `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig 食譜目錄資料庫
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// SourceConfig 外部食譜來源
type SourceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	ServiceID         string        `mapstructure:"service_id"`
	PageSize          int           `mapstructure:"page_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	SeedKeywords      []string      `mapstructure:"seed_keywords"`
	Concurrency       int           `mapstructure:"concurrency"`
}

// EmbeddingConfig 嵌入模型
type EmbeddingConfig struct {
	URL       string                   `mapstructure:"url"`
	Model     string                   `mapstructure:"model"`
	Dimension int                      `mapstructure:"dimension"`
	Timeout   time.Duration            `mapstructure:"timeout"`
	BatchSize int                      `mapstructure:"batch_size"`
	Breaker   resilience.BreakerConfig `mapstructure:"breaker"`
}

// VectorIndexConfig 向量索引
type VectorIndexConfig struct {
	Backend    string                   `mapstructure:"backend"`
	URL        string                   `mapstructure:"url"`
	APIKey     string                   `mapstructure:"api_key"`
	Collection string                   `mapstructure:"collection"`
	Timeout    time.Duration            `mapstructure:"timeout"`
	MaxRetries uint64                   `mapstructure:"max_retries"`
	Breaker    resilience.BreakerConfig `mapstructure:"breaker"`
}

// RankingConfig 排序參數
type RankingConfig struct {
	TopK            int     `mapstructure:"top_k"`
	MaxTopK         int     `mapstructure:"max_top_k"`
	Boost           float64 `mapstructure:"boost"`
	Oversample      int     `mapstructure:"oversample"`
	MethodBonus     float64 `mapstructure:"method_bonus"`
	OverlapStrategy string  `mapstructure:"overlap_strategy"`
}

// RerankConfig LLM 重排序
type RerankConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Provider          string  `mapstructure:"provider"`
	MaxCandidates     int     `mapstructure:"max_candidates"`
	MaxPicks          int     `mapstructure:"max_picks"`
	Temperature       float64 `mapstructure:"temperature"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis 連線
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig 背景任務隊列設定
type QueueConfig struct {
	Workers    int           `mapstructure:"workers"`
	MaxSize    int           `mapstructure:"max_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定（.env 不存在時略過）
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變量
	bindings := map[string]string{
		"database.driver":       "DATABASE_DRIVER",
		"database.dsn":          "DATABASE_URL",
		"source.api_key":        "FOOD_SAFETY_API_KEY",
		"embedding.url":         "OLLAMA_URL",
		"embedding.model":       "EMBEDDING_MODEL",
		"vector_index.url":      "QDRANT_URL",
		"vector_index.api_key":  "QDRANT_API_KEY",
		"openrouter.api_key":    "OPENROUTER_API_KEY",
		"openrouter.model":      "OPENROUTER_MODEL",
		"openrouter.max_tokens": "MODEL_MAX_TOKENS",
		"gemini.api_key":        "GEMINI_API_KEY",
		"rerank.provider":       "RERANK_PROVIDER",
		"cache.enabled":         "CACHE_ENABLED",
		"cache.backend":         "CACHE_BACKEND",
		"redis.addr":            "REDIS_ADDR",
		"redis.password":        "REDIS_PASSWORD",
		"rate_limit.enabled":    "RATE_LIMIT_ENABLED",
		"rate_limit.requests":   "RATE_LIMIT_REQUESTS",
		"rate_limit.window":     "RATE_LIMIT_WINDOW",
		"dedup_window":          "DEDUP_WINDOW",
		"log_level":             "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// 設定檔名稱和路徑
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-recommender")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "45s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// 資料庫
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:recipes.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")

	// 外部食譜來源
	v.SetDefault("source.base_url", "http://openapi.foodsafetykorea.go.kr/api")
	v.SetDefault("source.api_key", "")
	v.SetDefault("source.service_id", "COOKRCP01")
	v.SetDefault("source.page_size", 100)
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.requests_per_second", 4)
	v.SetDefault("source.max_retries", 2)
	v.SetDefault("source.seed_keywords", []string{"계란", "두부", "김치", "우유", "양파", "대파", "감자", "당근", "닭고기", "돼지고기"})
	v.SetDefault("source.concurrency", 2)

	// 嵌入模型
	v.SetDefault("embedding.url", "http://localhost:11434")
	v.SetDefault("embedding.model", "bge-m3")
	v.SetDefault("embedding.dimension", 1024)
	v.SetDefault("embedding.timeout", "60s")
	v.SetDefault("embedding.batch_size", 32)

	// 向量索引
	v.SetDefault("vector_index.backend", "qdrant")
	v.SetDefault("vector_index.url", "http://localhost:6333")
	v.SetDefault("vector_index.api_key", "")
	v.SetDefault("vector_index.collection", "recipes_bert_filtered")
	v.SetDefault("vector_index.timeout", "10s")
	v.SetDefault("vector_index.max_retries", 3)

	// 排序
	v.SetDefault("ranking.top_k", 5)
	v.SetDefault("ranking.max_top_k", 50)
	v.SetDefault("ranking.boost", 0.2)
	v.SetDefault("ranking.oversample", 40)
	v.SetDefault("ranking.method_bonus", 0.0)
	v.SetDefault("ranking.overlap_strategy", "mapping")

	// 重排序
	v.SetDefault("rerank.enabled", true)
	v.SetDefault("rerank.provider", "openrouter")
	v.SetDefault("rerank.max_candidates", 20)
	v.SetDefault("rerank.max_picks", 3)
	v.SetDefault("rerank.temperature", 0.3)
	v.SetDefault("rerank.requests_per_second", 0)

	// OpenRouter 設定
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.max_tokens", 1000)
	v.SetDefault("openrouter.timeout", "60s")

	// Gemini 設定
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.timeout", "60s")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// Redis
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 隊列設定
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.max_size", 100)
	v.SetDefault("queue.job_timeout", "10m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}
	if config.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}

	switch config.VectorIndex.Backend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("unsupported vector index backend %q", config.VectorIndex.Backend)
	}

	if config.Embedding.Dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension")
	}
	if config.Embedding.BatchSize <= 0 {
		return fmt.Errorf("invalid embedding batch size")
	}

	// 驗證排序設定
	if config.Ranking.TopK <= 0 {
		return fmt.Errorf("invalid ranking top_k")
	}
	if config.Ranking.MaxTopK < config.Ranking.TopK {
		return fmt.Errorf("ranking max_top_k must be >= top_k")
	}
	if config.Ranking.Oversample < config.Ranking.TopK {
		return fmt.Errorf("ranking oversample must be >= top_k")
	}
	switch config.Ranking.OverlapStrategy {
	case "mapping", "substring":
	default:
		return fmt.Errorf("unsupported overlap strategy %q", config.Ranking.OverlapStrategy)
	}

	if config.Rerank.Enabled {
		switch config.Rerank.Provider {
		case "openrouter", "gemini":
		default:
			return fmt.Errorf("unsupported rerank provider %q", config.Rerank.Provider)
		}
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
		switch config.Cache.Backend {
		case "memory", "redis":
		default:
			return fmt.Errorf("unsupported cache backend %q", config.Cache.Backend)
		}
	}

	// 驗證隊列設定
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	return nil
}
