package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/onelens/backend/pkg/circuitbreaker"
	"github.com/onelens/backend/pkg/errs"
	"github.com/onelens/backend/pkg/logger"
	"github.com/onelens/backend/pkg/retry"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("%w: create completion: %v", errs.ErrTransientProvider, err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("%w: generate embedding: %v", errs.ErrTransientProvider, err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// AnalyzeTrend asks for market trend alignment of a feature. The response is
// returned verbatim; parsing lives in the analysis package.
func (c *Client) AnalyzeTrend(ctx context.Context, title, description string) (string, error) {
	systemPrompt := `You are a market research analyst for B2B SaaS products.
Assess how well a requested feature aligns with current industry trends.

Return JSON:
{"alignment_score": 0.0-1.0, "trend_keywords": ["keyword1", "keyword2"], "confidence_score": 0.0-1.0, "reasoning": "explanation"}`

	userPrompt := fmt.Sprintf("Feature: %s\n\nDescription: %s\n\nAssess trend alignment. Return JSON only.", title, description)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    400,
	})

	if err != nil {
		return "", fmt.Errorf("failed to analyze trend: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) AnalyzeBusinessImpact(ctx context.Context, title, description string, requestCount int) (string, error) {
	systemPrompt := `You are a product strategy analyst. Estimate the business impact
of building a requested feature, considering revenue potential and retention risk.

Return JSON:
{"impact_score": 0-100, "revenue_impact": "Low|Medium|High", "confidence_score": 0.0-1.0, "reasoning": "explanation"}`

	userPrompt := fmt.Sprintf("Feature: %s\n\nDescription: %s\n\nRequested by %d customers. Estimate business impact. Return JSON only.",
		title, description, requestCount)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    400,
	})

	if err != nil {
		return "", fmt.Errorf("failed to analyze business impact: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) AnalyzeCompetitive(ctx context.Context, title, description string) (string, error) {
	systemPrompt := `You are a competitive intelligence analyst for B2B SaaS products.
Survey which competitors already provide a capability and score the market opening.

Return JSON:
{"providing": 0, "not_providing": 0, "total_competitors": 0, "opportunity_score": 0.0-1.0, "confidence_score": 0.0-1.0, "reasoning": "explanation"}`

	userPrompt := fmt.Sprintf("Feature: %s\n\nDescription: %s\n\nSurvey the competitive landscape. Return JSON only.", title, description)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    500,
	})

	if err != nil {
		return "", fmt.Errorf("failed to analyze competition: %w", err)
	}

	return resp.Content, nil
}

func (c *Client) AnalyzeGeographic(ctx context.Context, title, description string) (string, error) {
	systemPrompt := `You are a market analyst. Identify the regions where demand for a
requested capability is concentrated.

Return JSON:
{"regions": ["region1", "region2"], "demand_concentration": 0.0-1.0, "confidence_score": 0.0-1.0, "reasoning": "explanation"}`

	userPrompt := fmt.Sprintf("Feature: %s\n\nDescription: %s\n\nIdentify regional demand. Return JSON only.", title, description)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    400,
	})

	if err != nil {
		return "", fmt.Errorf("failed to analyze geography: %w", err)
	}

	return resp.Content, nil
}
