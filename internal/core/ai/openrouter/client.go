package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-recommender/internal/core/ai/provider"
	"recipe-recommender/internal/infrastructure/resilience"
	"recipe-recommender/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL OpenRouter API 位址
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel 預設模型
	DefaultModel = "openai/gpt-4o-mini"
)

// Client OpenRouter API 客戶端
type Client struct {
	client  *resty.Client
	config  provider.Config
	breaker *resilience.Breaker
}

// chatRequest 表示 API 請求
type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []provider.Message `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature"`
	Stop        []string           `json:"stop,omitempty"`
}

// chatResponse OpenRouter 響應結構
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message provider.Message `json:"message"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
}

// apiError 表示 API 錯誤
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的 OpenRouter 客戶端
func NewClient(cfg provider.Config, breaker resilience.BreakerConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Referer == "" {
		cfg.Referer = "https://recipe-recommender.local"
	}
	if cfg.Title == "" {
		cfg.Title = "Recipe Recommender"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", cfg.Referer).
		SetHeader("X-Title", cfg.Title).
		SetHeader("Content-Type", "application/json")

	return &Client{
		client:  client,
		config:  cfg,
		breaker: resilience.NewBreaker("openrouter", breaker),
	}
}

// Generate 呼叫 /chat/completions
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if c.config.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	body := chatRequest{
		Model:       c.config.Model,
		Messages:    req.Messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}

	start := time.Now()
	result, err := resilience.Execute(c.breaker, func() (*chatResponse, error) {
		return c.send(ctx, body)
	})
	common.LogAICall(c.config.Model, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, provider.ErrEmptyResponse
	}

	model := result.Model
	if model == "" {
		model = c.config.Model
	}
	return &provider.Response{
		Content: result.Choices[0].Message.Content,
		Model:   model,
		Usage:   result.Usage,
	}, nil
}

func (c *Client) send(ctx context.Context, body chatRequest) (*chatResponse, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		var apiErr apiError
		msg := resp.String()
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		common.LogError("OpenRouter API 返回錯誤",
			zap.Int("status", resp.StatusCode()),
			zap.String("message", msg),
		)
		return nil, fmt.Errorf("OpenRouter API returned status %d: %s", resp.StatusCode(), msg)
	}

	var result chatResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse OpenRouter response: %w", err)
	}
	return &result, nil
}

// GetModel 返回模型名稱
func (c *Client) GetModel() string {
	return c.config.Model
}

// GetTimeout 返回請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.config.Timeout
}

// Close 無需釋放資源
func (c *Client) Close() error {
	return nil
}
