package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"recipe-recommender/internal/core/ingest"
	"recipe-recommender/internal/core/queue"
	"recipe-recommender/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Queue 背景任務隊列
type Queue interface {
	Enqueue(ctx context.Context, job queue.Job) (*queue.Task, error)
	Get(id string) (*queue.Task, bool)
	Status() *queue.Status
}

// Ingester 依關鍵字匯入
type Ingester interface {
	Ingest(ctx context.Context, keyword string) (*ingest.Result, error)
}

// Embedder 嵌入待處理的食譜
type Embedder interface {
	EmbedPending(ctx context.Context, batchSize int) (int, error)
}

// Collection 向量索引集合管理
type Collection interface {
	EnsureCollection(ctx context.Context, dim int) error
	RecreateCollection(ctx context.Context, dim int) error
}

// Options 管理端設定
type Options struct {
	Dimension    int
	BatchSize    int
	SeedKeywords []string
	Debug        bool
}

// IngestRequest 匯入請求，keywords 為空時使用預設關鍵字
type IngestRequest struct {
	Keywords []string `json:"keywords"`
}

// EmbedRequest 嵌入請求
type EmbedRequest struct {
	BatchSize int `json:"batch_size"`
}

// CollectionRequest 集合管理請求
type CollectionRequest struct {
	Recreate bool `json:"recreate"`
}

// QueuedTask 已排入的任務
type QueuedTask struct {
	Keyword string `json:"keyword,omitempty"`
	TaskID  string `json:"task_id"`
}

// Handler 管理處理程序
type Handler struct {
	queue      Queue
	ingester   Ingester
	embedder   Embedder
	collection Collection
	opts       Options
}

// NewHandler 創建管理處理程序
func NewHandler(q Queue, ingester Ingester, embedder Embedder, collection Collection, opts Options) *Handler {
	if len(opts.SeedKeywords) == 0 {
		opts.SeedKeywords = ingest.DefaultSeedKeywords
	}
	return &Handler{
		queue:      q,
		ingester:   ingester,
		embedder:   embedder,
		collection: collection,
		opts:       opts,
	}
}

// Ingest POST /api/v1/admin/ingest，每個關鍵字一個任務
func (h *Handler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err), h.opts.Debug)
		return
	}

	keywords := uniqueKeywords(req.Keywords)
	if len(keywords) == 0 {
		keywords = uniqueKeywords(h.opts.SeedKeywords)
	}

	var (
		tasks    []QueuedTask
		rejected []string
		lastErr  error
	)
	for _, kw := range keywords {
		keyword := kw
		task, err := h.queue.Enqueue(c.Request.Context(), queue.Job{
			Kind: queue.KindIngest,
			Name: keyword,
			Run: func(ctx context.Context) (any, error) {
				return h.ingester.Ingest(ctx, keyword)
			},
		})
		if err != nil {
			rejected = append(rejected, keyword)
			lastErr = err
			continue
		}
		tasks = append(tasks, QueuedTask{Keyword: keyword, TaskID: task.ID()})
	}

	if len(tasks) == 0 && lastErr != nil {
		common.WriteError(c, queueError(lastErr), h.opts.Debug)
		return
	}
	if len(rejected) > 0 {
		common.LogWarn("部分匯入任務未排入隊列", zap.Strings("keywords", rejected), zap.Error(lastErr))
	}

	c.JSON(http.StatusAccepted, gin.H{"tasks": tasks, "rejected": rejected})
}

// Embed POST /api/v1/admin/embed，嵌入直到沒有待處理的食譜
func (h *Handler) Embed(c *gin.Context) {
	var req EmbedRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err), h.opts.Debug)
		return
	}
	if req.BatchSize < 0 {
		common.WriteError(c, common.NewValidationError("batch_size must not be negative"), h.opts.Debug)
		return
	}
	batchSize := req.BatchSize
	if batchSize == 0 {
		batchSize = h.opts.BatchSize
	}

	task, err := h.queue.Enqueue(c.Request.Context(), queue.Job{
		Kind: queue.KindEmbed,
		Name: "pending",
		Run: func(ctx context.Context) (any, error) {
			n, err := h.embedder.EmbedPending(ctx, batchSize)
			return gin.H{"embedded": n}, err
		},
	})
	if err != nil {
		common.WriteError(c, queueError(err), h.opts.Debug)
		return
	}

	c.JSON(http.StatusAccepted, QueuedTask{TaskID: task.ID()})
}

// Task GET /api/v1/admin/tasks/:id
func (h *Handler) Task(c *gin.Context) {
	task, ok := h.queue.Get(c.Param("id"))
	if !ok {
		common.WriteError(c, common.ErrNotFound, h.opts.Debug)
		return
	}
	c.JSON(http.StatusOK, task.Info())
}

// QueueStatus GET /api/v1/admin/queue
func (h *Handler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Status())
}

// Collection POST /api/v1/admin/collection
func (h *Handler) Collection(c *gin.Context) {
	var req CollectionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		common.WriteError(c, common.ErrInvalidRequest.WithErr(err), h.opts.Debug)
		return
	}

	var err error
	action := "ensured"
	if req.Recreate {
		action = "recreated"
		err = h.collection.RecreateCollection(c.Request.Context(), h.opts.Dimension)
	} else {
		err = h.collection.EnsureCollection(c.Request.Context(), h.opts.Dimension)
	}
	if err != nil {
		common.WriteError(c, common.ErrDependencyDown.WithErr(err), h.opts.Debug)
		return
	}

	common.LogInfo("向量集合已處理", zap.String("action", action), zap.Int("dimension", h.opts.Dimension))
	c.JSON(http.StatusOK, gin.H{"status": action, "dimension": h.opts.Dimension})
}

// bindOptionalJSON 允許空的請求體
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}

func uniqueKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func queueError(err error) error {
	if errors.Is(err, queue.ErrQueueClosed) {
		return common.ErrServiceUnavailable.WithErr(err)
	}
	return err
}
