// Package recommend answers a user's free-text request with ranked recipes
// and, when enabled, model-written reasons for the top picks.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/core/rerank"
	"recipe-recommender/internal/core/retrieval"
	"recipe-recommender/internal/infrastructure/metrics"
	"recipe-recommender/internal/infrastructure/resilience"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

// Ranker 混合檢索排序
type Ranker interface {
	Recommend(ctx context.Context, req retrieval.Request) ([]recipe.Recipe, error)
}

// Reranker LLM 重排序
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []rerank.Candidate) ([]rerank.Pick, error)
}

// Pantry 使用者冰箱食材
type Pantry interface {
	PantryNames(ctx context.Context, userID int64) ([]string, error)
}

// Request 推薦請求
type Request struct {
	UserID int64    `json:"user_id" binding:"required"`
	Query  string   `json:"query" binding:"required"`
	TopK   *int     `json:"top_k,omitempty"`
	Boost  *float64 `json:"boost,omitempty"`
	Rerank *bool    `json:"rerank,omitempty"`
}

// Recommendation 單筆推薦
type Recommendation struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Category    *string `json:"category"`
	Method      *string `json:"method"`
	Description *string `json:"description"`
	Reason      string  `json:"reason,omitempty"`
}

// Response 推薦結果
type Response struct {
	Fridge          []string         `json:"fridge"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Options 服務選項
type Options struct {
	// Rerank 請求未指定時是否重排序
	Rerank bool
}

// Service 推薦服務
type Service struct {
	ranker   Ranker
	reranker Reranker
	pantry   Pantry
	opts     Options
}

// NewService 創建推薦服務，reranker 為 nil 時永不重排序
func NewService(ranker Ranker, reranker Reranker, pantry Pantry, opts Options) *Service {
	return &Service{
		ranker:   ranker,
		reranker: reranker,
		pantry:   pantry,
		opts:     opts,
	}
}

// Recommend 檢索、排序並視需要重排序；錯誤皆為 *common.CustomError
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	rreq := retrieval.Request{UserID: req.UserID, Query: req.Query, Boost: req.Boost}
	if req.TopK != nil {
		rreq.TopK = *req.TopK
	}

	recipes, err := s.ranker.Recommend(ctx, rreq)
	if err != nil {
		return nil, classify(err)
	}

	fridge, err := s.pantry.PantryNames(ctx, req.UserID)
	if err != nil {
		return nil, common.ErrRecommendFailed.WithErr(fmt.Errorf("load pantry: %w", err))
	}
	if fridge == nil {
		fridge = []string{}
	}

	resp := &Response{Fridge: fridge}
	if !s.shouldRerank(req) {
		resp.Recommendations = fromRecipes(recipes)
		return resp, nil
	}

	start := time.Now()
	candidates := make([]rerank.Candidate, len(recipes))
	for i, r := range recipes {
		candidates[i] = rerank.CandidateFrom(r)
	}
	picks, err := s.reranker.Rerank(ctx, req.Query, candidates)
	metrics.ObserveSince(metrics.RecommendDuration.WithLabelValues("rerank"), start)
	if err != nil {
		common.LogWarn("重排序失敗",
			zap.Int64("user_id", req.UserID),
			zap.String("query", req.Query),
			zap.Error(err),
		)
		return nil, classify(err)
	}

	resp.Recommendations = withReasons(recipes, picks)
	return resp, nil
}

func (s *Service) shouldRerank(req Request) bool {
	if s.reranker == nil {
		return false
	}
	if req.Rerank != nil {
		return *req.Rerank
	}
	return s.opts.Rerank
}

// classify 將內部錯誤對應到 API 錯誤
func classify(err error) error {
	switch {
	case errors.Is(err, retrieval.ErrEmptyQuery), errors.Is(err, retrieval.ErrTopKTooLarge):
		return common.ErrInvalidRequest.WithErr(err)
	case errors.Is(err, rerank.ErrMalformedResponse):
		return common.ErrRerankMalformed.WithErr(err)
	case errors.Is(err, resilience.ErrUnavailable):
		return common.ErrDependencyDown.WithErr(err)
	default:
		return common.ErrRecommendFailed.WithErr(err)
	}
}

func fromRecipes(recipes []recipe.Recipe) []Recommendation {
	out := make([]Recommendation, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, toRecommendation(r, ""))
	}
	return out
}

// withReasons 依模型挑選順序輸出，未知 id 略過
func withReasons(recipes []recipe.Recipe, picks []rerank.Pick) []Recommendation {
	byID := make(map[int64]recipe.Recipe, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
	}
	out := make([]Recommendation, 0, len(picks))
	for _, p := range picks {
		r, ok := byID[p.ID]
		if !ok {
			continue
		}
		out = append(out, toRecommendation(r, p.Reason))
	}
	return out
}

func toRecommendation(r recipe.Recipe, reason string) Recommendation {
	return Recommendation{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		Method:      r.Method,
		Description: r.Description,
		Reason:      reason,
	}
}
