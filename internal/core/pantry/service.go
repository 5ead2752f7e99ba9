// Package pantry records what a user has in the fridge and kicks off
// ingestion for each newly declared ingredient.
package pantry

import (
	"context"
	"errors"
	"fmt"

	"recipe-recommender/internal/core/catalog"
	"recipe-recommender/internal/core/ingest"
	"recipe-recommender/internal/core/queue"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/pkg/common"
	"recipe-recommender/internal/pkg/textnorm"

	"go.uber.org/zap"
)

// Store 冰箱食材的儲存操作
type Store interface {
	EnsureIngredientMaster(ctx context.Context, name string) (catalog.InsertResult, error)
	UpsertUserIngredient(ctx context.Context, userID, ingredientID int64, quantity float64) (bool, error)
	Pantry(ctx context.Context, userID int64) ([]recipe.UserIngredient, error)
}

// Ingester 依關鍵字匯入食譜
type Ingester interface {
	Ingest(ctx context.Context, keyword string) (*ingest.Result, error)
}

// Enqueuer 背景任務隊列
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (*queue.Task, error)
}

// Result 新增食材的結果
type Result struct {
	IngredientID int64  `json:"ingredient_id"`
	Name         string `json:"name"`
	Created      bool   `json:"created"`
	TaskID       string `json:"task_id,omitempty"`
}

// Service 冰箱服務
type Service struct {
	store    Store
	ingester Ingester
	queue    Enqueuer
}

// NewService 創建冰箱服務
func NewService(store Store, ingester Ingester, q Enqueuer) *Service {
	return &Service{store: store, ingester: ingester, queue: q}
}

// AddIngredient 寫入冰箱食材並排入一個匯入任務；排程失敗不影響寫入結果
func (s *Service) AddIngredient(ctx context.Context, userID int64, name string, quantity float64) (*Result, error) {
	normalized := textnorm.Normalize(name)
	if normalized == "" {
		return nil, common.NewValidationError("ingredient name is required")
	}
	if quantity < 0 {
		return nil, common.NewValidationError("quantity must not be negative")
	}

	master, err := s.store.EnsureIngredientMaster(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("ensure ingredient: %w", err)
	}
	created, err := s.store.UpsertUserIngredient(ctx, userID, master.ID, quantity)
	if err != nil {
		return nil, fmt.Errorf("save pantry item: %w", err)
	}

	result := &Result{IngredientID: master.ID, Name: normalized, Created: created}

	task, err := s.queue.Enqueue(ctx, queue.Job{
		Kind: queue.KindIngest,
		Name: normalized,
		Run: func(ctx context.Context) (any, error) {
			return s.ingester.Ingest(ctx, normalized)
		},
	})
	if err != nil {
		fields := []zap.Field{zap.Int64("user_id", userID), zap.String("ingredient", normalized), zap.Error(err)}
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			common.LogWarn("匯入任務未排入隊列", fields...)
			return result, nil
		}
		return nil, fmt.Errorf("enqueue ingest: %w", err)
	}
	result.TaskID = task.ID()
	return result, nil
}

// ListPantry 返回使用者冰箱食材
func (s *Service) ListPantry(ctx context.Context, userID int64) ([]recipe.UserIngredient, error) {
	items, err := s.store.Pantry(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []recipe.UserIngredient{}
	}
	return items, nil
}
