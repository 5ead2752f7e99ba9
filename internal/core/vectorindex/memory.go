package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex 行程內的向量索引（本機執行與測試用）
type MemoryIndex struct {
	mu     sync.RWMutex
	dim    int
	exists bool
	points map[string]Point
	order  []string
}

// NewMemoryIndex 創建記憶體索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

// EnsureCollection 集合不存在時建立
func (m *MemoryIndex) EnsureCollection(ctx context.Context, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exists {
		return nil
	}
	m.dim = dim
	m.exists = true
	return nil
}

// RecreateCollection 清空並重建
func (m *MemoryIndex) RecreateCollection(ctx context.Context, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dim = dim
	m.exists = true
	m.points = make(map[string]Point)
	m.order = nil
	return nil
}

// Ready 檢查集合是否存在
func (m *MemoryIndex) Ready(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return ErrCollectionMissing
	}
	return nil
}

// Upsert 寫入單一點
func (m *MemoryIndex) Upsert(ctx context.Context, p Point) error {
	return m.UpsertBatch(ctx, []Point{p})
}

// UpsertBatch 批次寫入點
func (m *MemoryIndex) UpsertBatch(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return ErrCollectionMissing
	}
	for _, p := range points {
		if len(p.Vector) != m.dim {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, m.dim, len(p.Vector))
		}
	}
	for _, p := range points {
		if _, ok := m.points[p.ID]; !ok {
			m.order = append(m.order, p.ID)
		}
		m.points[p.ID] = p
	}
	return nil
}

// Query 以餘弦相似度排序，同分依寫入順序
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, filter *Filter, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return nil, ErrCollectionMissing
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, m.dim, len(vector))
	}

	hits := make([]Hit, 0, len(m.order))
	for _, id := range m.order {
		p := m.points[id]
		if !filter.Matches(p.Payload) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len 返回點數
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// containsText 不分大小寫的子字串比對
func containsText(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
