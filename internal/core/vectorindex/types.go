// Package vectorindex stores one vector per recipe with a filterable payload
// and answers nearest-neighbour queries.
package vectorindex

import (
	"context"
	"errors"
	"strconv"
)

const (
	// DefaultCollection 預設集合名稱
	DefaultCollection = "recipes_bert_filtered"
	// VectorName 具名向量欄位
	VectorName = "vector"
)

// 負載欄位
const (
	PayloadRecipeID = "recipe_id"
	PayloadName     = "name"
	PayloadCategory = "category"
	PayloadMethod   = "method"
	PayloadCalories = "calories"
)

var (
	// ErrCollectionMissing 集合不存在
	ErrCollectionMissing = errors.New("vectorindex: collection does not exist")
	// ErrDimensionMismatch 向量維度與集合不符
	ErrDimensionMismatch = errors.New("vectorindex: vector dimension mismatch")
)

// Point 索引中的一個點
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"-"`
	Payload map[string]any `json:"payload"`
}

// Hit 查詢結果
type Hit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// RecipeID 從負載取出食譜 id
func (h Hit) RecipeID() (int64, bool) {
	switch v := h.Payload[PayloadRecipeID].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

// Method 從負載取出調理法
func (h Hit) Method() string {
	s, _ := h.Payload[PayloadMethod].(string)
	return s
}

// MatchText 全文比對
type MatchText struct {
	Text string `json:"text"`
}

// Range 數值範圍
type Range struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// Condition 單一欄位條件
type Condition struct {
	Key   string     `json:"key"`
	Match *MatchText `json:"match,omitempty"`
	Range *Range     `json:"range,omitempty"`
}

// Filter 所有條件都必須成立
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// IsEmpty 沒有任何條件
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.Must) == 0
}

// Matches 以負載評估過濾條件（記憶體索引與測試使用）
func (f *Filter) Matches(payload map[string]any) bool {
	if f.IsEmpty() {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(payload) {
			return false
		}
	}
	return true
}

func (c Condition) matches(payload map[string]any) bool {
	v, ok := payload[c.Key]
	if !ok || v == nil {
		return false
	}
	if c.Match != nil {
		s, ok := v.(string)
		if !ok || !containsText(s, c.Match.Text) {
			return false
		}
	}
	if c.Range != nil {
		n, ok := toFloat(v)
		if !ok {
			return false
		}
		if c.Range.GTE != nil && n < *c.Range.GTE {
			return false
		}
		if c.Range.LTE != nil && n > *c.Range.LTE {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Index 向量索引
type Index interface {
	// EnsureCollection 集合不存在時建立
	EnsureCollection(ctx context.Context, dim int) error
	// RecreateCollection 刪除後重建集合
	RecreateCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, p Point) error
	UpsertBatch(ctx context.Context, points []Point) error
	Query(ctx context.Context, vector []float32, filter *Filter, limit int) ([]Hit, error)
	// Ready 檢查集合是否可用
	Ready(ctx context.Context) error
}
