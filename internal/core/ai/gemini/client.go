// Package gemini adapts the Google Gemini API to the provider.Provider
// interface used by the re-ranking adapter.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recipe-recommender/internal/core/ai/provider"
	"recipe-recommender/internal/pkg/common"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel 預設模型
const DefaultModel = "gemini-1.5-flash"

// Client Gemini API 客戶端
type Client struct {
	client *genai.Client
	config provider.Config
}

// NewClient 創建 Gemini 客戶端
func NewClient(ctx context.Context, cfg provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, config: cfg}, nil
}

// Generate 以系統指令與使用者訊息呼叫 GenerateContent
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// 每次請求各自建立 model，避免併發修改設定
	model := c.client.GenerativeModel(c.config.Model)
	system, rest := provider.SplitSystem(req.Messages)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	model.SetTemperature(float32(req.Temperature))
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}

	parts := make([]genai.Part, 0, len(rest))
	for _, m := range rest {
		parts = append(parts, genai.Text(m.Content))
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	common.LogAICall(c.config.Model, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, provider.ErrEmptyResponse
	}

	out := &provider.Response{Content: text, Model: c.config.Model}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// responseText 串接第一個候選的文字片段
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// GetModel 返回模型名稱
func (c *Client) GetModel() string {
	return c.config.Model
}

// GetTimeout 返回請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.config.Timeout
}

// Close 關閉底層 gRPC 連線
func (c *Client) Close() error {
	return c.client.Close()
}
