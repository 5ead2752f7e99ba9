package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/vectorindex"
	"recipe-recommender/internal/infrastructure/metrics"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrEmptyQuery 查詢為空
var ErrEmptyQuery = errors.New("retrieval: query is empty")

// ErrTopKTooLarge 請求的結果數超過上限
var ErrTopKTooLarge = errors.New("retrieval: top_k exceeds limit")

// OverlapStrategy 冰箱食材重疊的計算方式
type OverlapStrategy string

const (
	// OverlapMapping 以食材對應表計算（預設）
	OverlapMapping OverlapStrategy = "mapping"
	// OverlapSubstring 以食材名稱是否出現在食譜名稱或描述中計算
	OverlapSubstring OverlapStrategy = "substring"
)

// 預設排序參數
const (
	DefaultTopK       = 5
	DefaultMaxTopK    = 50
	DefaultBoost      = 0.2
	DefaultOversample = 40
)

// QueryEncoder 將查詢轉為向量
type QueryEncoder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
}

// Catalog 排序需要的唯讀目錄操作
type Catalog interface {
	PantryIngredientIDs(ctx context.Context, userID int64) ([]int64, error)
	PantryNames(ctx context.Context, userID int64) ([]string, error)
	RecipeIngredientIDs(ctx context.Context, recipeIDs []int64) (map[int64][]int64, error)
	RecipesByIDs(ctx context.Context, ids []int64) ([]recipe.Recipe, error)
}

// Options 排序參數
type Options struct {
	TopK        int
	MaxTopK     int
	Boost       float64
	Oversample  int
	MethodBonus float64
	Overlap     OverlapStrategy
}

// Request 推薦請求，零值欄位使用引擎預設
type Request struct {
	UserID int64
	Query  string
	TopK   int
	Boost  *float64
}

// Ranked 排序後的食譜與分數
type Ranked struct {
	Recipe     recipe.Recipe `json:"recipe"`
	Score      float64       `json:"score"`
	Similarity float64       `json:"similarity"`
	Overlap    int           `json:"overlap"`
}

// Engine 混合檢索與排序引擎，只讀不寫
type Engine struct {
	encoder QueryEncoder
	index   vectorindex.Index
	catalog Catalog
	opts    Options
}

// NewEngine 創建排序引擎
func NewEngine(encoder QueryEncoder, index vectorindex.Index, catalog Catalog, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = max(DefaultMaxTopK, opts.TopK)
	}
	if opts.Oversample <= 0 {
		opts.Oversample = DefaultOversample
	}
	if opts.Overlap == "" {
		opts.Overlap = OverlapMapping
	}
	return &Engine{
		encoder: encoder,
		index:   index,
		catalog: catalog,
		opts:    opts,
	}
}

// Recommend 返回依排序順序的食譜，長度不超過 TopK
func (e *Engine) Recommend(ctx context.Context, req Request) ([]recipe.Recipe, error) {
	ranked, err := e.Rank(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make([]recipe.Recipe, len(ranked))
	for i, r := range ranked {
		out[i] = r.Recipe
	}
	return out, nil
}

type scoredHit struct {
	recipeID   int64
	similarity float64
	overlap    int
	score      float64
}

// Rank 執行檢索並返回含分數的結果
func (e *Engine) Rank(ctx context.Context, req Request) ([]Ranked, error) {
	start := time.Now()
	defer metrics.ObserveSince(metrics.RecommendDuration.WithLabelValues("retrieval"), start)

	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	topK := req.TopK
	if topK <= 0 {
		topK = e.opts.TopK
	}
	if topK > e.opts.MaxTopK {
		return nil, fmt.Errorf("%w: %d > %d", ErrTopKTooLarge, topK, e.opts.MaxTopK)
	}
	boost := e.opts.Boost
	if req.Boost != nil {
		boost = *req.Boost
	}

	plan := ParseQuery(req.Query)

	vector, err := e.encoder.EncodeQuery(ctx, plan.Residual)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.index.Query(ctx, vector, plan.Filter, max(e.opts.Oversample, topK))
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	if len(hits) == 0 {
		return []Ranked{}, nil
	}

	scored := make([]scoredHit, 0, len(hits))
	var recipeIDs []int64
	seen := make(map[int64]bool, len(hits))
	for _, h := range hits {
		id, ok := h.RecipeID()
		if !ok {
			continue
		}
		scored = append(scored, scoredHit{recipeID: id, similarity: h.Score})
		if plan.Method != "" && e.opts.MethodBonus != 0 && h.Method() == plan.Method {
			scored[len(scored)-1].score += e.opts.MethodBonus
		}
		if !seen[id] {
			seen[id] = true
			recipeIDs = append(recipeIDs, id)
		}
	}

	overlap, loaded, err := e.overlap(ctx, req.UserID, recipeIDs)
	if err != nil {
		return nil, err
	}

	for i := range scored {
		scored[i].overlap = overlap[scored[i].recipeID]
		scored[i].score += scored[i].similarity + boost*float64(scored[i].overlap)
	}

	// 同分時保持索引順序
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	size := min(topK, len(scored))
	top := make([]scoredHit, 0, size)
	picked := make(map[int64]bool, size)
	for _, s := range scored {
		if picked[s.recipeID] {
			continue
		}
		picked[s.recipeID] = true
		top = append(top, s)
		if len(top) == topK {
			break
		}
	}

	if loaded == nil {
		ids := make([]int64, len(top))
		for i, s := range top {
			ids[i] = s.recipeID
		}
		recipes, err := e.catalog.RecipesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load recipes: %w", err)
		}
		loaded = byID(recipes)
	}

	ranked := make([]Ranked, 0, len(top))
	for _, s := range top {
		r, ok := loaded[s.recipeID]
		if !ok {
			// 索引中殘留、目錄已不存在的食譜
			continue
		}
		ranked = append(ranked, Ranked{
			Recipe:     r,
			Score:      s.score,
			Similarity: s.similarity,
			Overlap:    s.overlap,
		})
	}

	metrics.RecommendResultsTotal.Add(float64(len(ranked)))
	common.LogDebug("檢索完成",
		zap.Int64("user_id", req.UserID),
		zap.String("residual", plan.Residual),
		zap.String("method", plan.Method),
		zap.Int("hits", len(hits)),
		zap.Int("results", len(ranked)),
	)
	return ranked, nil
}

// overlap 計算每個食譜與冰箱食材的重疊數；substring 策略會順便載入食譜
func (e *Engine) overlap(ctx context.Context, userID int64, recipeIDs []int64) (map[int64]int, map[int64]recipe.Recipe, error) {
	counts := make(map[int64]int, len(recipeIDs))

	switch e.opts.Overlap {
	case OverlapSubstring:
		names, err := e.catalog.PantryNames(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load pantry: %w", err)
		}
		recipes, err := e.catalog.RecipesByIDs(ctx, recipeIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load recipes: %w", err)
		}
		loaded := byID(recipes)
		for id, r := range loaded {
			counts[id] = substringOverlap(r.Name+" "+r.DescriptionText(), names)
		}
		return counts, loaded, nil

	default:
		pantry, err := e.catalog.PantryIngredientIDs(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load pantry: %w", err)
		}
		if len(pantry) == 0 {
			return counts, nil, nil
		}
		owned := make(map[int64]bool, len(pantry))
		for _, id := range pantry {
			owned[id] = true
		}

		mapping, err := e.catalog.RecipeIngredientIDs(ctx, recipeIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load ingredient mapping: %w", err)
		}
		for recipeID, ingredients := range mapping {
			n := 0
			for _, ing := range ingredients {
				if owned[ing] {
					n++
				}
			}
			counts[recipeID] = n
		}
		return counts, nil, nil
	}
}

// substringOverlap 計算出現在文字中的食材名稱數
func substringOverlap(text string, names []string) int {
	text = strings.ToLower(text)
	n := 0
	for _, name := range names {
		if name != "" && strings.Contains(text, strings.ToLower(name)) {
			n++
		}
	}
	return n
}

func byID(recipes []recipe.Recipe) map[int64]recipe.Recipe {
	out := make(map[int64]recipe.Recipe, len(recipes))
	for _, r := range recipes {
		out[r.ID] = r
	}
	return out
}
