// Package rerank asks a chat model to pick the best few recipes out of the
// ranking engine's candidates and validates what comes back.
package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"recipe-recommender/internal/core/ai/provider"
	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/infrastructure/metrics"
	"recipe-recommender/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	// DefaultMaxCandidates 送給模型的候選上限
	DefaultMaxCandidates = 20
	// DefaultMaxPicks 模型最多挑選的數量
	DefaultMaxPicks = 3
	// DefaultTemperature 預設取樣溫度
	DefaultTemperature = 0.3
)

// ErrMalformedResponse 模型回應不是合法的 JSON 陣列
var ErrMalformedResponse = errors.New("rerank: malformed model response")

// Candidate 送給模型的候選食譜
type Candidate struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Method      string `json:"method"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Pick 模型挑選的結果
type Pick struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Completer 對話補全
type Completer interface {
	Complete(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// Options 重排序參數
type Options struct {
	MaxCandidates int
	MaxPicks      int
	Temperature   float64
	MaxTokens     int
}

// Adapter LLM 重排序
type Adapter struct {
	completer Completer
	opts      Options
}

// NewAdapter 創建重排序器
func NewAdapter(c Completer, opts Options) *Adapter {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.MaxPicks <= 0 {
		opts.MaxPicks = DefaultMaxPicks
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	return &Adapter{completer: c, opts: opts}
}

// CandidateFrom 將目錄食譜簡化為候選
func CandidateFrom(r recipe.Recipe) Candidate {
	return Candidate{
		ID:          r.ID,
		Name:        r.Name,
		Method:      r.MethodOr(""),
		Category:    r.CategoryOr(""),
		Description: recipe.SimplifyIngredients(r.DescriptionText()),
	}
}

// Rerank 讓模型從候選中挑選，結果只包含候選集合內的 id
func (a *Adapter) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Pick, error) {
	if len(candidates) == 0 {
		metrics.RerankOutcomesTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}
	if len(candidates) > a.opts.MaxCandidates {
		candidates = candidates[:a.opts.MaxCandidates]
	}

	resp, err := a.completer.Complete(ctx, &provider.Request{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: systemInstruction},
			{Role: provider.RoleUser, Content: BuildPrompt(query, candidates, a.opts.MaxPicks)},
		},
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		metrics.RerankOutcomesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rerank: completion failed: %w", err)
	}

	picks, err := ParsePicks(resp.Content, candidates, a.opts.MaxPicks)
	if err != nil {
		metrics.RerankOutcomesTotal.WithLabelValues("malformed").Inc()
		common.LogWarn("重排序回應解析失敗",
			zap.String("query", query),
			zap.Int("response_len", len(resp.Content)),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RerankOutcomesTotal.WithLabelValues("ok").Inc()
	return picks, nil
}

// ParsePicks 去除 code fence 後解析，捨棄未知或重複的 id，最多保留 maxPicks 筆
func ParsePicks(raw string, candidates []Candidate, maxPicks int) ([]Pick, error) {
	cleaned := common.StripCodeFence(raw)

	var parsed []rawPick
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		arr, ok := common.ExtractJSONArray(cleaned)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if err := json.Unmarshal([]byte(arr), &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	known := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(parsed))
	picks := make([]Pick, 0, len(parsed))
	for _, p := range parsed {
		id := int64(p.ID)
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		picks = append(picks, Pick{ID: id, Name: strings.TrimSpace(p.Name), Reason: strings.TrimSpace(p.Reason)})
		if maxPicks > 0 && len(picks) == maxPicks {
			break
		}
	}
	return picks, nil
}

type rawPick struct {
	ID     flexibleID `json:"id"`
	Name   string     `json:"name"`
	Reason string     `json:"reason"`
}

// flexibleID 接受整數或整數字串形式的 id；非整數記為 0，不對應任何候選
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	*f = 0
	if text == "" || text == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*f = flexibleID(n)
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("invalid id %s", data)
	}
	// 42.0 或 4.2e1 仍視為整數
	if math.IsInf(v, 0) || v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return nil
	}
	*f = flexibleID(v)
	return nil
}
