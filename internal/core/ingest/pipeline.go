// Package ingest turns raw records from the external recipe source into
// catalog rows and hands the newly created recipes to the embedder.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-recommender/internal/core/catalog"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/source"
	"recipe-recommender/internal/infrastructure/metrics"
	"recipe-recommender/internal/pkg/common"
	"recipe-recommender/internal/pkg/textnorm"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxBlankSteps 連續空白步驟達此數即停止讀取
const maxBlankSteps = 2

// DefaultSeedKeywords 初始匯入使用的食材關鍵字
var DefaultSeedKeywords = []string{
	"계란", "두부", "김치", "우유", "양파",
	"대파", "감자", "당근", "닭고기", "돼지고기",
}

// TxRunner 以交易執行寫入
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *catalog.Tx) error) error
}

// Embedder 為新建立的食譜產生向量
type Embedder interface {
	EmbedRecipes(ctx context.Context, ids []int64) (int, error)
}

// Result 單一關鍵字的匯入結果
type Result struct {
	Keyword      string  `json:"keyword"`
	Fetched      int     `json:"fetched"`
	Created      int     `json:"created"`
	Skipped      int     `json:"skipped"`
	Failed       int     `json:"failed"`
	Embedded     int     `json:"embedded"`
	NewRecipeIDs []int64 `json:"new_recipe_ids"`
}

// Pipeline 食譜匯入流程
type Pipeline struct {
	fetcher  source.Fetcher
	store    TxRunner
	embedder Embedder
}

// NewPipeline 創建匯入流程，embedder 可為 nil（只寫入目錄）
func NewPipeline(fetcher source.Fetcher, store TxRunner, embedder Embedder) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		embedder: embedder,
	}
}

type outcome string

const (
	outcomeCreated outcome = "created"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

// Ingest 匯入單一關鍵字的食譜
//
// 外部來源失敗不會往上拋出：回傳 Fetched 為 0 的結果並記錄原因。
// 只有 context 被取消時才回傳錯誤。
func (p *Pipeline) Ingest(ctx context.Context, keyword string) (*Result, error) {
	start := time.Now()
	result := &Result{Keyword: keyword}

	records, err := p.fetcher.Fetch(ctx, keyword)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		metrics.SourceRequestsTotal.WithLabelValues("error").Inc()
		common.LogWarn("外部來源無法使用，略過此關鍵字",
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return result, nil
	}
	metrics.SourceRequestsTotal.WithLabelValues("ok").Inc()
	result.Fetched = len(records)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		out, id, err := p.ingestRecord(ctx, rec)
		metrics.IngestRecordsTotal.WithLabelValues(string(out)).Inc()
		switch out {
		case outcomeCreated:
			result.Created++
			result.NewRecipeIDs = append(result.NewRecipeIDs, id)
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
			common.LogWarn("食譜寫入失敗，已回滾",
				zap.String("keyword", keyword),
				zap.String("title", rec.Title),
				zap.Bool("unique_violation", catalog.IsUniqueViolation(err) || errors.Is(err, catalog.ErrNameConflict)),
				zap.Error(err),
			)
		}
	}

	if len(result.NewRecipeIDs) > 0 && p.embedder != nil {
		n, err := p.embedder.EmbedRecipes(ctx, result.NewRecipeIDs)
		result.Embedded = n
		if err != nil {
			// 已提交的食譜保留，之後由 EmbedPending 補齊
			common.LogError("新食譜嵌入失敗",
				zap.String("keyword", keyword),
				zap.Int("recipes", len(result.NewRecipeIDs)),
				zap.Error(err),
			)
		}
	}

	common.LogIngest(keyword, result.Fetched, result.Created, result.Skipped, result.Failed, time.Since(start))
	return result, nil
}

// ingestRecord 在單一交易中寫入一筆紀錄
func (p *Pipeline) ingestRecord(ctx context.Context, rec recipe.RawRecord) (outcome, int64, error) {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return outcomeSkipped, 0, nil
	}

	var res catalog.InsertResult
	err := p.store.WithTx(ctx, func(tx *catalog.Tx) error {
		var err error
		res, err = tx.InsertRecipe(ctx, &recipe.Recipe{
			Name:        title,
			Category:    common.StringPtr(rec.Category),
			Method:      common.StringPtr(rec.Method),
			Description: common.StringPtr(rec.IngredientText),
			Calories:    rec.Calories,
			Protein:     rec.Protein,
			Carbs:       rec.Carbs,
			Fat:         rec.Fat,
			Sodium:      rec.Sodium,
			RecipeHash:  recipe.HashKey(title),
		})
		if err != nil {
			return err
		}
		if !res.Inserted {
			return nil
		}

		for _, ing := range recipe.ParseIngredients(rec.IngredientText) {
			name := textnorm.Normalize(ing.Name)
			if name == "" {
				continue
			}
			master, err := tx.EnsureIngredientMaster(ctx, name)
			if err != nil {
				return err
			}
			qty := ing.Quantity
			if _, err := tx.InsertRecipeIngredient(ctx, res.ID, master.ID, &qty, common.StringPtr(ing.Unit)); err != nil {
				return err
			}
			if _, err := tx.InsertMapping(ctx, master.ID, res.ID); err != nil {
				return err
			}
		}

		for i, text := range Steps(rec.Steps) {
			if _, err := tx.InsertInstruction(ctx, res.ID, i+1, text); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return outcomeFailed, 0, fmt.Errorf("recipe %q: %w", title, err)
	}
	if !res.Inserted {
		return outcomeSkipped, res.ID, nil
	}
	return outcomeCreated, res.ID, nil
}

// Steps 依序取出非空白步驟，連續兩個空白即停止
func Steps(raw [recipe.MaxSteps]string) []string {
	var steps []string
	blank := 0
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			blank++
			if blank >= maxBlankSteps {
				break
			}
			continue
		}
		blank = 0
		steps = append(steps, s)
	}
	return steps
}

// IngestMany 併發匯入多個關鍵字，結果順序與輸入一致
func (p *Pipeline) IngestMany(ctx context.Context, keywords []string, concurrency int) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*Result, len(keywords))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, kw := range keywords {
		g.Go(func() error {
			res, err := p.Ingest(gctx, kw)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Total 彙總多個關鍵字的結果
func Total(results []*Result) Result {
	var total Result
	for _, r := range results {
		if r == nil {
			continue
		}
		total.Fetched += r.Fetched
		total.Created += r.Created
		total.Skipped += r.Skipped
		total.Failed += r.Failed
		total.Embedded += r.Embedded
		total.NewRecipeIDs = append(total.NewRecipeIDs, r.NewRecipeIDs...)
	}
	return total
}
