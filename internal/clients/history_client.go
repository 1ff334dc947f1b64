package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dinory-ai/internal/models"
)

// HistoryClient reads durable child history from the backend. The backend
// owns the data; this service only reads it to build conversation context.
type HistoryClient interface {
	// GetChatHistory returns the child's recent conversation turns,
	// most-recent-first, at most limit entries.
	GetChatHistory(ctx context.Context, childID int64, limit int) ([]models.ConversationTurn, error)
	// GetStoryCompletions returns the child's finished-story records,
	// most-recent-first, at most limit entries.
	GetStoryCompletions(ctx context.Context, childID int64, limit int) ([]models.StoryCompletion, error)
}

// Compile-time check to ensure implementation satisfies the interface.
var _ HistoryClient = (*HTTPHistoryClient)(nil)

type HTTPHistoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPHistoryClient creates an HTTP client for the backend history API.
func NewHTTPHistoryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPHistoryClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &HTTPHistoryClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("HTTPHistoryClient"),
	}
}

func (c *HTTPHistoryClient) GetChatHistory(ctx context.Context, childID int64, limit int) ([]models.ConversationTurn, error) {
	endpointURL := fmt.Sprintf("%s/chat/history/child/%d?limit=%d", c.baseURL, childID, limit)
	var turns []models.ConversationTurn
	if err := c.getJSON(ctx, endpointURL, &turns); err != nil {
		return nil, fmt.Errorf("failed to fetch chat history for child %d: %w", childID, err)
	}
	c.logger.Debug("Chat history received",
		zap.Int64("child_id", childID),
		zap.Int("count", len(turns)),
	)
	return turns, nil
}

func (c *HTTPHistoryClient) GetStoryCompletions(ctx context.Context, childID int64, limit int) ([]models.StoryCompletion, error) {
	endpointURL := fmt.Sprintf("%s/story/completions/child/%d?limit=%d", c.baseURL, childID, limit)
	var completions []models.StoryCompletion
	if err := c.getJSON(ctx, endpointURL, &completions); err != nil {
		return nil, fmt.Errorf("failed to fetch story completions for child %d: %w", childID, err)
	}
	c.logger.Debug("Story completions received",
		zap.Int64("child_id", childID),
		zap.Int("count", len(completions)),
	)
	return completions, nil
}

func (c *HTTPHistoryClient) getJSON(ctx context.Context, endpointURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		c.logger.Error("Failed to create backend request", zap.String("url", endpointURL), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to execute backend request", zap.String("url", endpointURL), zap.Error(err))
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Backend returned non-OK status",
			zap.String("url", endpointURL),
			zap.Int("status_code", resp.StatusCode),
		)
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("Failed to decode backend response", zap.String("url", endpointURL), zap.Error(err))
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
