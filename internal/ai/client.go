package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"dinory-ai/internal/config"
	"dinory-ai/internal/models"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dinory_ai_requests_total",
			Help: "Total number of requests to the AI API.",
		},
		[]string{"model", "kind", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dinory_ai_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "kind"},
	)
)

// Message is one role-tagged turn of a chat prompt.
type Message struct {
	Role    string
	Content string
}

// GenerationParams tunes a single generation call. Pointers distinguish
// "not set" from zero.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	JSONMode    bool
}

// Client is the generation collaborator. Every method can fail with
// models.ErrGenerationFailed; callers own their deterministic fallbacks.
type Client interface {
	// Generate produces a completion for the given messages.
	Generate(ctx context.Context, messages []Message, params GenerationParams) (string, error)
	// Embed vectorizes text for the semantic index.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Enabled reports whether this client performs real calls.
	Enabled() bool
}

// Temp returns a GenerationParams temperature pointer.
func Temp(v float64) *float64 { return &v }

// MaxTok returns a GenerationParams max-token pointer.
func MaxTok(v int) *int { return &v }

// --- OpenAI client ---

type openAIClient struct {
	client         *openaigo.Client
	model          string
	embeddingModel string
	logger         *zap.Logger
}

func (c *openAIClient) Enabled() bool { return true }

func (c *openAIClient) Generate(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: empty prompt", models.ErrGenerationFailed)
	}

	chatMessages := make([]openaigo.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openaigo.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openaigo.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMessages,
	}
	if params.Temperature != nil {
		req.Temperature = float32(*params.Temperature)
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.JSONMode {
		req.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("AI API call failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error"}).Inc()
		return "", fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Error("AI API returned empty response", zap.Duration("duration", duration))
		aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "error_empty_response"}).Inc()
		return "", fmt.Errorf("%w: empty response", models.ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.model, "kind": "chat", "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.model, "kind": "chat"}).Observe(duration.Seconds())

	content := resp.Choices[0].Message.Content
	c.logger.Debug("AI response received",
		zap.Duration("duration", duration),
		zap.Int("response_len", len(content)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return content, nil
}

func (c *openAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty embedding input", models.ErrGenerationFailed)
	}

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openaigo.EmbeddingRequest{
		Model: openaigo.EmbeddingModel(c.embeddingModel),
		Input: []string{text},
	})
	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Embedding call failed", zap.Duration("duration", duration), zap.Error(err))
		aiRequestsTotal.With(prometheus.Labels{"model": c.embeddingModel, "kind": "embedding", "status": "error"}).Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		aiRequestsTotal.With(prometheus.Labels{"model": c.embeddingModel, "kind": "embedding", "status": "error_empty_response"}).Inc()
		return nil, fmt.Errorf("%w: empty embedding", models.ErrGenerationFailed)
	}

	aiRequestsTotal.With(prometheus.Labels{"model": c.embeddingModel, "kind": "embedding", "status": "success"}).Inc()
	aiRequestDuration.With(prometheus.Labels{"model": c.embeddingModel, "kind": "embedding"}).Observe(duration.Seconds())
	return resp.Data[0].Embedding, nil
}

// --- Disabled client ---

// disabledClient is the null collaborator: it always fails with
// ErrGenerationFailed so every component takes its deterministic path.
// Selected once at construction when no API key is configured.
type disabledClient struct{}

func (disabledClient) Enabled() bool { return false }

func (disabledClient) Generate(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	return "", fmt.Errorf("%w: ai client disabled", models.ErrGenerationFailed)
}

func (disabledClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: ai client disabled", models.ErrGenerationFailed)
}

// NewDisabledClient returns the null collaborator, for construction-time
// selection and for tests.
func NewDisabledClient() Client { return disabledClient{} }

// --- Factory ---

// NewClient creates the generation collaborator from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) Client {
	if !cfg.GenerationEnabled() {
		logger.Warn("OPENAI_API_KEY not set, using disabled AI client; deterministic fallbacks only")
		return disabledClient{}
	}

	openaiConfig := openaigo.DefaultConfig(cfg.AIAPIKey)
	if cfg.AIBaseURL != "" {
		openaiConfig.BaseURL = cfg.AIBaseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.AITimeout}

	logger.Info("OpenAI client created",
		zap.String("model", cfg.AIModel),
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Duration("timeout", cfg.AITimeout),
	)
	return &openAIClient{
		client:         openaigo.NewClientWithConfig(openaiConfig),
		model:          cfg.AIModel,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger.Named("OpenAIClient"),
	}
}
