package embedding

import (
	"context"
	"fmt"
	"time"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/infrastructure/metrics"
	"recipe-recommender/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBatchSize 預設每批嵌入的食譜數
const DefaultBatchSize = 32

// Catalog 嵌入流程需要的目錄操作
type Catalog interface {
	PendingRecipes(ctx context.Context, limit int) ([]recipe.Recipe, error)
	RecipesByIDs(ctx context.Context, ids []int64) ([]recipe.Recipe, error)
	IngredientNames(ctx context.Context, recipeIDs []int64) (map[int64][]string, error)
	UpsertEmbedding(ctx context.Context, recipeID int64, vector []float32) error
}

// Generator 食譜嵌入產生器
type Generator struct {
	catalog   Catalog
	index     vectorindex.Index
	encoder   Encoder
	batchSize int
}

// NewGenerator 創建嵌入產生器
func NewGenerator(catalog Catalog, index vectorindex.Index, encoder Encoder, batchSize int) *Generator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Generator{
		catalog:   catalog,
		index:     index,
		encoder:   encoder,
		batchSize: batchSize,
	}
}

// EmbedPending 反覆處理尚未嵌入的食譜直到沒有剩餘
//
// 某批失敗時停止並返回錯誤，先前的批次保持已提交。
func (g *Generator) EmbedPending(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = g.batchSize
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		pending, err := g.catalog.PendingRecipes(ctx, batchSize)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			common.LogInfo("待嵌入食譜已處理完畢", zap.Int("embedded", total))
			return total, nil
		}

		n, err := g.embedBatch(ctx, pending)
		total += n
		if err != nil {
			return total, err
		}
	}
}

// EmbedRecipes 嵌入指定的食譜（依批次大小分批）
func (g *Generator) EmbedRecipes(ctx context.Context, ids []int64) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += g.batchSize {
		end := min(start+g.batchSize, len(ids))

		recipes, err := g.catalog.RecipesByIDs(ctx, ids[start:end])
		if err != nil {
			return total, err
		}
		if len(recipes) == 0 {
			continue
		}

		n, err := g.embedBatch(ctx, recipes)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// embedBatch 一次編碼整批文件，寫入索引後再寫入目錄
func (g *Generator) embedBatch(ctx context.Context, recipes []recipe.Recipe) (n int, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveSince(metrics.EmbedBatchDuration, start)
		common.LogEmbedBatch(len(recipes), time.Since(start), err)
	}()

	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}
	names, err := g.catalog.IngredientNames(ctx, ids)
	if err != nil {
		return 0, err
	}

	docs := make([]string, len(recipes))
	for i, r := range recipes {
		docs[i] = BuildDocument(r, names[r.ID])
	}

	vectors, err := g.encoder.Encode(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %d documents: %w", len(docs), err)
	}
	if len(vectors) != len(recipes) {
		return 0, fmt.Errorf("encoder returned %d vectors for %d documents", len(vectors), len(recipes))
	}

	points := make([]vectorindex.Point, len(recipes))
	for i, r := range recipes {
		points[i] = vectorindex.Point{
			ID:      uuid.New().String(),
			Vector:  vectors[i],
			Payload: Payload(r),
		}
	}
	if err := g.index.UpsertBatch(ctx, points); err != nil {
		return 0, err
	}

	for i, r := range recipes {
		if err := g.catalog.UpsertEmbedding(ctx, r.ID, vectors[i]); err != nil {
			return n, err
		}
		n++
	}

	metrics.EmbeddedRecipesTotal.Add(float64(n))
	return n, nil
}

// Payload 索引點的可過濾欄位
func Payload(r recipe.Recipe) map[string]any {
	payload := map[string]any{
		vectorindex.PayloadRecipeID: r.ID,
		vectorindex.PayloadName:     r.Name,
		vectorindex.PayloadCategory: r.CategoryOr(""),
		vectorindex.PayloadMethod:   r.MethodOr(""),
	}
	if r.Calories != nil {
		payload[vectorindex.PayloadCalories] = *r.Calories
	}
	return payload
}
