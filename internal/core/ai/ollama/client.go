// Package ollama calls a local Ollama server's embedding endpoint.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"recipe-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrDimension 回傳向量維度與設定不符
var ErrDimension = errors.New("ollama: unexpected embedding dimension")

// Config Ollama 連線設定
type Config struct {
	URL       string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// Client Ollama 嵌入客戶端
type Client struct {
	client    *resty.Client
	model     string
	dimension int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewClient 創建嵌入客戶端
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}
}

// Dimension 返回向量維度
func (c *Client) Dimension() int {
	return c.dimension
}

// Model 返回模型名稱
func (c *Client) Model() string {
	return c.model
}

// Encode 將文字批次轉為單位長度向量，輸出順序與輸入一致
func (c *Client) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	var result embedResponse
	var apiErr errorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: c.model, Input: texts}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode(), apiErr.Error)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	for i, v := range result.Embeddings {
		if c.dimension > 0 && len(v) != c.dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimension, c.dimension, len(v))
		}
		result.Embeddings[i] = Normalize(v)
	}

	common.LogDebug("嵌入請求完成",
		zap.String("model", c.model),
		zap.Int("texts", len(texts)),
		zap.Duration("duration", time.Since(start)),
	)
	return result.Embeddings, nil
}

// Normalize 將向量縮放為單位長度，零向量原樣返回
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
