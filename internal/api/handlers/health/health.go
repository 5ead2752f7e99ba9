package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-recommender/internal/core/queue"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// readyTimeout 就緒檢查中單一依賴的等待上限
const readyTimeout = 3 * time.Second

// Pinger 可檢查連線的依賴
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker 檢查向量集合是否可用
type IndexChecker interface {
	Ready(ctx context.Context) error
}

// QueueStatusProvider 提供隊列狀態
type QueueStatusProvider interface {
	Status() *queue.Status
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Handler 健康檢查處理程序
type Handler struct {
	version string
	db      Pinger
	index   IndexChecker
	queue   QueueStatusProvider
}

// NewHandler 創建健康檢查處理程序，依賴為 nil 時略過該項檢查
func NewHandler(version string, db Pinger, index IndexChecker, q QueueStatusProvider) *Handler {
	return &Handler{version: version, db: db, index: index, queue: q}
}

// Health 健康檢查處理器
func (h *Handler) Health(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.Status()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// Ready 就緒檢查處理器：資料庫與向量集合
func (h *Handler) Ready(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if h.db != nil {
		checks["database"] = h.check(c, "database", h.db.Ping, &ready)
	}
	if h.index != nil {
		checks["vector_index"] = h.check(c, "vector_index", h.index.Ready, &ready)
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (h *Handler) check(c *gin.Context, name string, fn func(ctx context.Context) error, ready *bool) string {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		*ready = false
		common.LogWarn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
		return err.Error()
	}
	return "ok"
}

// Live 存活檢查處理器
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
