package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/clients"
	"dinory-ai/internal/models"
)

// Retrieval windows. Summaries keep only the first few completions so the
// prompt stays small.
const (
	recentTurnsLimit   = 10
	completionsLimit   = 5
	semanticTopK       = 5
	summaryCompletions = 3
	summaryTopics      = 3
	topicMaxLen        = 100
)

const noHistorySummary = "이전 대화 기록 없음"

// MemoryRetriever merges recency-bounded history, long-term completion
// records and optional semantic search into one conversation context. Every
// source degrades to an empty list; retrieval itself never fails.
type MemoryRetriever struct {
	history clients.HistoryClient
	index   clients.VectorIndex
	ai      ai.Client
	logger  *zap.Logger
}

// NewMemoryRetriever creates a retriever over the three collaborators.
func NewMemoryRetriever(history clients.HistoryClient, index clients.VectorIndex, aiClient ai.Client, logger *zap.Logger) *MemoryRetriever {
	return &MemoryRetriever{
		history: history,
		index:   index,
		ai:      aiClient,
		logger:  logger.Named("MemoryRetriever"),
	}
}

// GetRelevantContext assembles the full context for the current message.
func (m *MemoryRetriever) GetRelevantContext(ctx context.Context, currentMessage string, childID, sessionID int64) models.ConversationContext {
	recent, err := m.history.GetChatHistory(ctx, childID, recentTurnsLimit)
	if err != nil {
		m.logger.Warn("Failed to fetch recent conversations", zap.Int64("child_id", childID), zap.Error(err))
		recent = nil
	}

	completions, err := m.history.GetStoryCompletions(ctx, childID, completionsLimit)
	if err != nil {
		m.logger.Warn("Failed to fetch story completions", zap.Int64("child_id", childID), zap.Error(err))
		completions = nil
	}

	var similar []models.SimilarConversation
	if m.index.Enabled() {
		similar, err = m.SearchSimilarConversations(ctx, currentMessage, childID, semanticTopK)
		if err != nil {
			// Semantic search is optional; drop it silently.
			m.logger.Warn("Semantic search failed", zap.Int64("child_id", childID), zap.Error(err))
			similar = nil
		}
	}

	summary, childName := buildContextSummary(recent, completions, similar)

	m.logger.Debug("Memory retrieved",
		zap.Int64("child_id", childID),
		zap.Int64("session_id", sessionID),
		zap.Int("recent", len(recent)),
		zap.Int("similar", len(similar)),
		zap.Int("completions", len(completions)),
	)

	return models.ConversationContext{
		RecentConversations:  recent,
		SimilarConversations: similar,
		StoryCompletions:     completions,
		Summary:              summary,
		ChildName:            childName,
	}
}

// SearchSimilarConversations embeds the query and runs a child-scoped
// similarity search.
func (m *MemoryRetriever) SearchSimilarConversations(ctx context.Context, query string, childID int64, topK int) ([]models.SimilarConversation, error) {
	embedding, err := m.ai.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := m.index.Query(ctx, embedding, clients.ChildFilter(childID), topK)
	if err != nil {
		return nil, err
	}

	similar := make([]models.SimilarConversation, 0, len(matches))
	for _, match := range matches {
		similar = append(similar, models.SimilarConversation{
			Message:   metadataString(match.Metadata, "message"),
			Response:  metadataString(match.Metadata, "response"),
			SessionID: metadataInt64(match.Metadata, "session_id"),
			Score:     match.Score,
			CreatedAt: metadataString(match.Metadata, "created_at"),
		})
	}
	return similar, nil
}

// buildContextSummary is a deterministic text assembly in fixed order:
// completions, recent topics, then semantic matches. The child's name is
// extracted from the earliest-listed completion and survives truncation.
func buildContextSummary(recent []models.ConversationTurn, completions []models.StoryCompletion, similar []models.SimilarConversation) (string, string) {
	var parts []string
	var childName string

	if len(completions) > 0 {
		parts = append(parts, "**완료한 동화:**")
		for i, story := range completions {
			if i == summaryCompletions {
				break
			}
			if childName == "" {
				childName = story.ChildName
			}
			title := story.StoryTitle
			if title == "" {
				title = "알 수 없음"
			}
			parts = append(parts, fmt.Sprintf("  - '%s' (%s)", title, formatAbilityDeltas(story.AbilityDeltas())))
		}
	}

	if len(recent) > 0 {
		parts = append(parts, "\n**최근 대화 주제:**")
		parts = append(parts, "  - "+extractTopics(recent))
	}

	if len(similar) > 0 {
		parts = append(parts, "\n**관련된 과거 대화 (시맨틱 검색 결과):**")
		for i, conv := range similar {
			if i == semanticTopK {
				break
			}
			parts = append(parts, fmt.Sprintf("  %d. [유사도: %.2f]", i+1, conv.Score))
			parts = append(parts, fmt.Sprintf("     사용자: %s", conv.Message))
			parts = append(parts, fmt.Sprintf("     AI: %s", conv.Response))
		}
	}

	if len(parts) == 0 {
		return noHistorySummary, ""
	}
	return strings.Join(parts, "\n"), childName
}

func formatAbilityDeltas(deltas map[models.AbilityType]int) string {
	var parts []string
	for _, ability := range models.AllAbilities {
		if deltas[ability] > 0 {
			parts = append(parts, fmt.Sprintf("%s+%d", ability, deltas[ability]))
		}
	}
	if len(parts) == 0 {
		return "능력치 없음"
	}
	return strings.Join(parts, ", ")
}

func extractTopics(recent []models.ConversationTurn) string {
	var messages []string
	for _, turn := range recent {
		if len(messages) == summaryTopics {
			break
		}
		if len([]rune(turn.Message)) > 3 {
			messages = append(messages, turn.Message)
		}
	}
	if len(messages) == 0 {
		return "대화 기록 없음"
	}
	combined := strings.Join(messages, " / ")
	if runes := []rune(combined); len(runes) > topicMaxLen {
		return string(runes[:topicMaxLen]) + "..."
	}
	return combined
}

func metadataString(metadata map[string]interface{}, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

func metadataInt64(metadata map[string]interface{}, key string) int64 {
	switch v := metadata[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// --- Vector index synchronization ---

// SyncConversation writes one finished exchange into the semantic index
// under msg_{messageID}. Callers treat failures as non-critical.
func (m *MemoryRetriever) SyncConversation(ctx context.Context, sessionID, childID int64, userMessage, aiResponse string, messageID int64) error {
	if !m.index.Enabled() {
		return nil
	}

	embedding, err := m.ai.Embed(ctx, userMessage)
	if err != nil {
		return fmt.Errorf("failed to embed conversation: %w", err)
	}

	return m.index.Upsert(ctx, []clients.Vector{{
		ID:     fmt.Sprintf("msg_%d", messageID),
		Values: embedding,
		Metadata: map[string]interface{}{
			"child_id":   childID,
			"session_id": sessionID,
			"message":    userMessage,
			"response":   aiResponse,
			"created_at": time.Now().UTC().Format(time.RFC3339),
			"message_id": messageID,
		},
	}})
}

// SyncStoryCompletion writes a finished-story summary into the semantic
// index under story_{completionID}.
func (m *MemoryRetriever) SyncStoryCompletion(ctx context.Context, completionID, childID int64, storyTitle, storyContent string, abilities map[string]int) error {
	if !m.index.Enabled() {
		return nil
	}

	if runes := []rune(storyContent); len(runes) > 500 {
		storyContent = string(runes[:500])
	}
	storySummary := fmt.Sprintf("동화 제목: %s\n내용: %s", storyTitle, storyContent)

	embedding, err := m.ai.Embed(ctx, storySummary)
	if err != nil {
		return fmt.Errorf("failed to embed story completion: %w", err)
	}

	metadata := map[string]interface{}{
		"child_id":      childID,
		"completion_id": completionID,
		"story_title":   storyTitle,
		"type":          "story_completion",
		"completed_at":  time.Now().UTC().Format(time.RFC3339),
	}
	for name, points := range abilities {
		metadata["ability_"+name] = points
	}

	return m.index.Upsert(ctx, []clients.Vector{{
		ID:       fmt.Sprintf("story_%d", completionID),
		Values:   embedding,
		Metadata: metadata,
	}})
}

// StoredConversation is one exchange read back from the semantic index.
type StoredConversation struct {
	MessageID string `json:"message_id"`
	SessionID int64  `json:"session_id"`
	ChildID   int64  `json:"child_id"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

// ConversationsByChild does filter-only retrieval from the index: list ids
// by the msg_ prefix, fetch metadata and filter by child, newest first.
func (m *MemoryRetriever) ConversationsByChild(ctx context.Context, childID int64, limit int) ([]StoredConversation, error) {
	ids, err := m.index.ListByPrefix(ctx, "msg_", limit*10)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vectors, err := m.index.Fetch(ctx, ids)
	if err != nil {
		return nil, err
	}

	var conversations []StoredConversation
	for _, vec := range vectors {
		if metadataInt64(vec.Metadata, "child_id") != childID {
			continue
		}
		conversations = append(conversations, StoredConversation{
			MessageID: vec.ID,
			SessionID: metadataInt64(vec.Metadata, "session_id"),
			ChildID:   childID,
			Message:   metadataString(vec.Metadata, "message"),
			Response:  metadataString(vec.Metadata, "response"),
			CreatedAt: metadataString(vec.Metadata, "created_at"),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt > conversations[j].CreatedAt
	})
	if len(conversations) > limit {
		conversations = conversations[:limit]
	}
	return conversations, nil
}

// SemanticSearchEnabled reports whether the index accepts queries.
func (m *MemoryRetriever) SemanticSearchEnabled() bool {
	return m.index.Enabled()
}
