package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recipe-recommender/internal/infrastructure/resilience"
	"recipe-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Config Qdrant 連線設定
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries uint64
	Breaker    resilience.BreakerConfig
}

// QdrantClient 透過 REST API 存取 Qdrant
type QdrantClient struct {
	client     *resty.Client
	collection string
	maxRetries uint64
	breaker    *resilience.Breaker
}

// NewQdrantClient 創建 Qdrant 客戶端
func NewQdrantClient(cfg Config) *QdrantClient {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}

	return &QdrantClient{
		client:     client,
		collection: cfg.Collection,
		maxRetries: cfg.MaxRetries,
		breaker:    resilience.NewBreaker("qdrant", cfg.Breaker),
	}
}

// Collection 返回集合名稱
func (c *QdrantClient) Collection() string {
	return c.collection
}

func (c *QdrantClient) collectionPath() string {
	return "/collections/" + url.PathEscape(c.collection)
}

// statusError 非 2xx 回應
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant: status %d: %s", e.status, e.body)
}

// do 在斷路器保護下送出請求，傳輸錯誤與 5xx 計為失敗
func (c *QdrantClient) do(ctx context.Context, send func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	return resilience.Execute(c.breaker, func() (*resty.Response, error) {
		resp, err := send(c.client.R().SetContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, &statusError{status: resp.StatusCode(), body: resp.String()}
		}
		return resp, nil
	})
}

func (c *QdrantClient) exists(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(c.collectionPath())
	})
	if err != nil {
		return false, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &statusError{status: resp.StatusCode(), body: resp.String()}
	}
}

func (c *QdrantClient) create(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dim)
	}
	body := map[string]any{
		"vectors": map[string]any{
			VectorName: map[string]any{
				"size":     dim,
				"distance": "Cosine",
			},
		},
	}
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Put(c.collectionPath())
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collection, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("failed to create collection %s: %w", c.collection,
			&statusError{status: resp.StatusCode(), body: resp.String()})
	}

	common.LogInfo("向量集合已建立",
		zap.String("collection", c.collection),
		zap.Int("dimension", dim),
	)
	return nil
}

// EnsureCollection 集合不存在時建立
func (c *QdrantClient) EnsureCollection(ctx context.Context, dim int) error {
	ok, err := c.exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", c.collection, err)
	}
	if ok {
		return nil
	}
	return c.create(ctx, dim)
}

// RecreateCollection 刪除後重建集合
func (c *QdrantClient) RecreateCollection(ctx context.Context, dim int) error {
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete(c.collectionPath())
	})
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", c.collection, err)
	}
	if !resp.IsSuccess() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("failed to delete collection %s: %w", c.collection,
			&statusError{status: resp.StatusCode(), body: resp.String()})
	}

	common.LogWarn("向量集合已刪除", zap.String("collection", c.collection))
	return c.create(ctx, dim)
}

// Ready 檢查集合是否存在
func (c *QdrantClient) Ready(ctx context.Context) error {
	ok, err := c.exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionMissing
	}
	return nil
}

// Upsert 寫入單一點
func (c *QdrantClient) Upsert(ctx context.Context, p Point) error {
	return c.UpsertBatch(ctx, []Point{p})
}

type wirePoint struct {
	ID      string               `json:"id"`
	Vector  map[string][]float32 `json:"vector"`
	Payload map[string]any       `json:"payload"`
}

// UpsertBatch 批次寫入點，傳輸錯誤與 5xx 會重試
func (c *QdrantClient) UpsertBatch(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	wire := make([]wirePoint, 0, len(points))
	for _, p := range points {
		wire = append(wire, wirePoint{
			ID:      p.ID,
			Vector:  map[string][]float32{VectorName: p.Vector},
			Payload: p.Payload,
		})
	}
	body := map[string]any{"points": wire}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
			return r.SetQueryParam("wait", "true").SetBody(body).Put(c.collectionPath() + "/points")
		})
		if err != nil {
			if errors.Is(err, resilience.ErrUnavailable) {
				return err
			}
			return retry.RetryableError(err)
		}
		return classify(resp)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

type queryResponse struct {
	Result struct {
		Points []struct {
			ID      json.RawMessage `json:"id"`
			Score   float64         `json:"score"`
			Payload map[string]any  `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// Query 以向量查詢最近鄰，filter 可為 nil
func (c *QdrantClient) Query(ctx context.Context, vector []float32, filter *Filter, limit int) ([]Hit, error) {
	body := map[string]any{
		"query":        vector,
		"using":        VectorName,
		"limit":        limit,
		"with_payload": true,
	}
	if !filter.IsEmpty() {
		body["filter"] = filter
	}

	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post(c.collectionPath() + "/points/query")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.collection, err)
	}
	if err := classify(resp); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.collection, err)
	}

	var decoded queryResponse
	if err := json.Unmarshal(resp.Body(), &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	hits := make([]Hit, 0, len(decoded.Result.Points))
	for _, p := range decoded.Result.Points {
		hits = append(hits, Hit{
			ID:      strings.Trim(string(p.ID), `"`),
			Score:   p.Score,
			Payload: p.Payload,
		})
	}
	return hits, nil
}

// classify 將 4xx 回應轉為領域錯誤
func classify(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	err := &statusError{status: resp.StatusCode(), body: resp.String()}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return errors.Join(ErrCollectionMissing, err)
	case strings.Contains(strings.ToLower(resp.String()), "dimension"):
		return errors.Join(ErrDimensionMismatch, err)
	default:
		return err
	}
}
