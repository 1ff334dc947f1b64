package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Vector is one entry of the semantic index.
type Vector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// VectorMatch is one scored result of a similarity query.
type VectorMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// VectorIndex is the semantic index collaborator. The disabled
// implementation returns empty results so retrieval degrades instead of
// failing; callers never branch on availability themselves.
type VectorIndex interface {
	// Upsert writes vectors into the index.
	Upsert(ctx context.Context, vectors []Vector) error
	// Query runs a similarity search. filter is an optional metadata
	// filter (e.g. ChildFilter to restrict results to one child).
	Query(ctx context.Context, values []float32, filter map[string]interface{}, topK int) ([]VectorMatch, error)
	// ListByPrefix returns ids with the given prefix, for filter-only
	// retrieval when no query vector is available.
	ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
	// Fetch returns the stored vectors for the given ids.
	Fetch(ctx context.Context, ids []string) ([]Vector, error)
	// Enabled reports whether this index performs real calls.
	Enabled() bool
}

// Compile-time check to ensure implementation satisfies the interface.
var _ VectorIndex = (*PineconeClient)(nil)

// PineconeClient talks to a Pinecone serverless index over its REST API.
type PineconeClient struct {
	indexHost  string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPineconeClient creates a REST client for the given index host.
func NewPineconeClient(indexHost, apiKey string, timeout time.Duration, logger *zap.Logger) *PineconeClient {
	indexHost = strings.TrimSuffix(indexHost, "/")
	if !strings.HasPrefix(indexHost, "http") {
		indexHost = "https://" + indexHost
	}
	return &PineconeClient{
		indexHost: indexHost,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("PineconeClient"),
	}
}

func (c *PineconeClient) Enabled() bool { return true }

func (c *PineconeClient) Upsert(ctx context.Context, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	requestBody := struct {
		Vectors []Vector `json:"vectors"`
	}{Vectors: vectors}

	var response struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := c.post(ctx, "/vectors/upsert", requestBody, &response); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	c.logger.Debug("Vectors upserted", zap.Int("count", response.UpsertedCount))
	return nil
}

// ChildFilter builds the metadata filter restricting matches to one child.
func ChildFilter(childID int64) map[string]interface{} {
	return map[string]interface{}{"child_id": map[string]interface{}{"$eq": childID}}
}

func (c *PineconeClient) Query(ctx context.Context, values []float32, filter map[string]interface{}, topK int) ([]VectorMatch, error) {
	requestBody := struct {
		Vector          []float32              `json:"vector"`
		TopK            int                    `json:"topK"`
		Filter          map[string]interface{} `json:"filter,omitempty"`
		IncludeMetadata bool                   `json:"includeMetadata"`
	}{
		Vector:          values,
		TopK:            topK,
		Filter:          filter,
		IncludeMetadata: true,
	}

	var response struct {
		Matches []VectorMatch `json:"matches"`
	}
	if err := c.post(ctx, "/query", requestBody, &response); err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	c.logger.Debug("Vector query completed", zap.Int("matches", len(response.Matches)))
	return response.Matches, nil
}

func (c *PineconeClient) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	endpointURL := fmt.Sprintf("%s/vectors/list?prefix=%s&limit=%d", c.indexHost, url.QueryEscape(prefix), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}

	var response struct {
		Vectors []struct {
			ID string `json:"id"`
		} `json:"vectors"`
	}
	if err := c.do(req, &response); err != nil {
		return nil, fmt.Errorf("failed to list vectors: %w", err)
	}

	ids := make([]string, 0, len(response.Vectors))
	for _, v := range response.Vectors {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (c *PineconeClient) Fetch(ctx context.Context, ids []string) ([]Vector, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := url.Values{}
	for _, id := range ids {
		query.Add("ids", id)
	}
	endpointURL := fmt.Sprintf("%s/vectors/fetch?%s", c.indexHost, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}

	var response struct {
		Vectors map[string]Vector `json:"vectors"`
	}
	if err := c.do(req, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch vectors: %w", err)
	}

	vectors := make([]Vector, 0, len(response.Vectors))
	for id, v := range response.Vectors {
		v.ID = id
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (c *PineconeClient) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.indexHost+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *PineconeClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Vector index request failed", zap.String("url", req.URL.Path), zap.Error(err))
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Vector index returned non-OK status",
			zap.String("url", req.URL.Path),
			zap.Int("status_code", resp.StatusCode),
		)
		return fmt.Errorf("vector index returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// --- Disabled index ---

// disabledVectorIndex is the null collaborator selected at construction when
// semantic search is not configured. Reads return empty, writes succeed.
type disabledVectorIndex struct{}

func (disabledVectorIndex) Enabled() bool { return false }

func (disabledVectorIndex) Upsert(ctx context.Context, vectors []Vector) error { return nil }

func (disabledVectorIndex) Query(ctx context.Context, values []float32, filter map[string]interface{}, topK int) ([]VectorMatch, error) {
	return nil, nil
}

func (disabledVectorIndex) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	return nil, nil
}

func (disabledVectorIndex) Fetch(ctx context.Context, ids []string) ([]Vector, error) {
	return nil, nil
}

// NewDisabledVectorIndex returns the null semantic index.
func NewDisabledVectorIndex() VectorIndex { return disabledVectorIndex{} }
