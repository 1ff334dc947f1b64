package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dinory-ai/internal/models"
	"dinory-ai/internal/service"
)

// MemoryHandler serves the semantic-index sync and query endpoints. Sync
// failures are reported in the response body, never as 5xx, because the
// index is a best-effort copy of data the backend already owns.
type MemoryHandler struct {
	memory *service.MemoryRetriever
	logger *zap.Logger
}

// NewMemoryHandler creates a MemoryHandler.
func NewMemoryHandler(memory *service.MemoryRetriever, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{
		memory: memory,
		logger: logger.Named("MemoryHandler"),
	}
}

// RegisterRoutes registers the /api/memory routes.
func (h *MemoryHandler) RegisterRoutes(r *gin.Engine) {
	memoryGroup := r.Group("/api/memory")
	{
		memoryGroup.POST("/sync/conversation", h.syncConversation)
		memoryGroup.POST("/sync/story-completion", h.syncStoryCompletion)
		memoryGroup.GET("/conversations/child/:childId", h.conversationsByChild)
		memoryGroup.GET("/conversations/search", h.searchConversations)
	}
}

type syncConversationRequest struct {
	SessionID   int64  `json:"session_id" binding:"required"`
	ChildID     int64  `json:"child_id" binding:"required"`
	UserMessage string `json:"user_message" binding:"required"`
	AIResponse  string `json:"ai_response" binding:"required"`
	MessageID   int64  `json:"message_id" binding:"required"`
}

type syncResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *MemoryHandler) syncConversation(c *gin.Context) {
	var req syncConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid sync conversation body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	if !h.memory.SemanticSearchEnabled() {
		c.JSON(http.StatusOK, syncResponse{Status: "skipped", Message: "semantic index is disabled"})
		return
	}

	err := h.memory.SyncConversation(c.Request.Context(), req.SessionID, req.ChildID, req.UserMessage, req.AIResponse, req.MessageID)
	if err != nil {
		h.logger.Warn("Conversation sync failed (non-critical)", zap.Int64("message_id", req.MessageID), zap.Error(err))
		c.JSON(http.StatusOK, syncResponse{Status: "failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, syncResponse{
		Status:  "success",
		Message: fmt.Sprintf("Conversation synced: msg_%d", req.MessageID),
	})
}

type syncStoryCompletionRequest struct {
	CompletionID int64          `json:"completion_id" binding:"required"`
	ChildID      int64          `json:"child_id" binding:"required"`
	StoryTitle   string         `json:"story_title" binding:"required"`
	StoryContent string         `json:"story_content"`
	Abilities    map[string]int `json:"abilities"`
}

func (h *MemoryHandler) syncStoryCompletion(c *gin.Context) {
	var req syncStoryCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid sync story body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	if !h.memory.SemanticSearchEnabled() {
		c.JSON(http.StatusOK, syncResponse{Status: "skipped", Message: "semantic index is disabled"})
		return
	}

	err := h.memory.SyncStoryCompletion(c.Request.Context(), req.CompletionID, req.ChildID, req.StoryTitle, req.StoryContent, req.Abilities)
	if err != nil {
		h.logger.Warn("Story completion sync failed (non-critical)", zap.Int64("completion_id", req.CompletionID), zap.Error(err))
		c.JSON(http.StatusOK, syncResponse{Status: "failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, syncResponse{
		Status:  "success",
		Message: fmt.Sprintf("Story completion synced: story_%d", req.CompletionID),
	})
}

func (h *MemoryHandler) conversationsByChild(c *gin.Context) {
	childID, err := strconv.ParseInt(c.Param("childId"), 10, 64)
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid childId", models.ErrValidation), h.logger)
		return
	}
	limit := queryInt(c, "limit", 10, 1, 100)

	if !h.memory.SemanticSearchEnabled() {
		c.JSON(http.StatusServiceUnavailable, APIError{Message: "semantic index is not enabled"})
		return
	}

	conversations, err := h.memory.ConversationsByChild(c.Request.Context(), childID, limit)
	if err != nil {
		h.logger.Error("Failed to fetch conversations from index", zap.Int64("child_id", childID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":         len(conversations),
		"conversations": conversations,
	})
}

func (h *MemoryHandler) searchConversations(c *gin.Context) {
	childID, err := strconv.ParseInt(c.Query("child_id"), 10, 64)
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid child_id", models.ErrValidation), h.logger)
		return
	}
	query := c.Query("query")
	if query == "" {
		handleServiceError(c, fmt.Errorf("%w: missing query", models.ErrValidation), h.logger)
		return
	}
	limit := queryInt(c, "limit", 5, 1, 20)

	if !h.memory.SemanticSearchEnabled() {
		c.JSON(http.StatusServiceUnavailable, APIError{Message: "semantic index is not enabled"})
		return
	}

	similar, err := h.memory.SearchSimilarConversations(c.Request.Context(), query, childID, limit)
	if err != nil {
		h.logger.Error("Semantic search failed", zap.Int64("child_id", childID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "semantic search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":                 query,
		"total":                 len(similar),
		"similar_conversations": similar,
	})
}

func queryInt(c *gin.Context, name string, fallback, min, max int) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
