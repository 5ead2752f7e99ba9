// Package source fetches raw recipe records from the Food Safety Korea
// COOKRCP01 open API and maps them onto recipe.RawRecord.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"recipe-recommender/internal/core/recipe"
	"recipe-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL 食品安全國家開放 API
	DefaultBaseURL = "http://openapi.foodsafetykorea.go.kr/api"
	// DefaultServiceID 調理食譜服務
	DefaultServiceID = "COOKRCP01"
	// DefaultPageSize 單次最多 100 筆
	DefaultPageSize = 100
)

var (
	// ErrSourceUnavailable 外部資料來源無法使用（非 200 或空回應）
	ErrSourceUnavailable = errors.New("source: recipe source unavailable")
	// ErrMissingAPIKey 未設定 API 金鑰
	ErrMissingAPIKey = errors.New("source: api key is required")
)

// Fetcher 依食材關鍵字取得原始食譜
type Fetcher interface {
	Fetch(ctx context.Context, keyword string) ([]recipe.RawRecord, error)
}

// Config 外部資料來源設定
type Config struct {
	BaseURL           string
	APIKey            string
	ServiceID         string
	PageSize          int
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        uint64
}

// FoodSafetyClient COOKRCP01 客戶端
type FoodSafetyClient struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter
}

// NewFoodSafetyClient 創建外部資料來源客戶端
func NewFoodSafetyClient(cfg Config) *FoodSafetyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ServiceID == "" {
		cfg.ServiceID = DefaultServiceID
	}
	if cfg.PageSize <= 0 || cfg.PageSize > DefaultPageSize {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &FoodSafetyClient{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch 取得包含關鍵字食材的食譜
func (c *FoodSafetyClient) Fetch(ctx context.Context, keyword string) ([]recipe.RawRecord, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/%s/%s/json/1/%d/RCP_PARTS_DTLS=%s",
		url.PathEscape(c.cfg.APIKey), c.cfg.ServiceID, c.cfg.PageSize, url.PathEscape(keyword))

	var body []byte
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.client.R().SetContext(ctx).Get(path)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode()))
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode())
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		common.LogError("外部食譜來源請求失敗",
			zap.String("keyword", keyword),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if len(body) == 0 {
		common.LogError("外部食譜來源回應為空", zap.String("keyword", keyword))
		return nil, fmt.Errorf("%w: empty body", ErrSourceUnavailable)
	}

	rows, err := decodeRows(body, c.cfg.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	records := make([]recipe.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, MapRecord(row))
	}

	common.LogDebug("外部食譜來源回應",
		zap.String("keyword", keyword),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

// decodeRows 解析 {SERVICE_ID: {row: [...]}} 外層結構
func decodeRows(body []byte, serviceID string) ([]map[string]any, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raw, ok := envelope[serviceID]
	if !ok {
		// 查無資料時 API 只回傳 RESULT
		return nil, nil
	}

	var payload struct {
		Row []map[string]any `json:"row"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return payload.Row, nil
}
