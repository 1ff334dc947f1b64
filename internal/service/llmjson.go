package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"dinory-ai/internal/models"
)

// decodeModelJSON parses a JSON object out of a model response. Models
// occasionally wrap the object in markdown fences or prose despite the
// JSON-only contract, so the first balanced object is extracted before
// unmarshalling. Failures map to ErrMalformedResponse.
func decodeModelJSON(raw string, out interface{}) error {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("%w: no JSON object in response", models.ErrMalformedResponse)
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	return nil
}
