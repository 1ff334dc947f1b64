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

// ChatHandler serves the companion-chat endpoints. The wire shapes use
// snake_case to match the app's existing chat contract.
type ChatHandler struct {
	chat    *service.ChatService
	emotion *service.EmotionAnalyzer
	logger  *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat *service.ChatService, emotion *service.EmotionAnalyzer, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		emotion: emotion,
		logger:  logger.Named("ChatHandler"),
	}
}

// RegisterRoutes registers the /api/chat routes.
func (h *ChatHandler) RegisterRoutes(r *gin.Engine) {
	chatGroup := r.Group("/api/chat")
	{
		chatGroup.POST("", h.chatMessage)
		chatGroup.POST("/init", h.initChat)
		chatGroup.POST("/init-from-story", h.initChatFromStory)
		chatGroup.POST("/choices", h.chatChoices)
		chatGroup.DELETE("/history/:sessionId", h.clearHistory)
	}
}

type chatRequest struct {
	SessionID int64  `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	ChildID   int64  `json:"child_id"`
}

type chatResponse struct {
	SessionID  int64  `json:"session_id"`
	AIResponse string `json:"ai_response"`
	Emotion    string `json:"emotion,omitempty"`
}

func (h *ChatHandler) chatMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid chat request body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	reply := h.chat.Chat(c.Request.Context(), req.SessionID, req.ChildID, req.Message)
	emotion := h.emotion.AnalyzeEmotion(req.Message)

	c.JSON(http.StatusOK, chatResponse{
		SessionID:  req.SessionID,
		AIResponse: reply,
		Emotion:    emotion,
	})
}

type initChatRequest struct {
	ChildID int64 `json:"child_id"`
}

func (h *ChatHandler) initChat(c *gin.Context) {
	var req initChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid chat init body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Chat session initialized",
		"greeting": h.emotion.Greeting(),
	})
}

type initChatFromStoryRequest struct {
	SessionID  int64               `json:"session_id" binding:"required"`
	ChildID    int64               `json:"child_id" binding:"required"`
	ChildName  string              `json:"child_name" binding:"required"`
	StoryID    string              `json:"story_id" binding:"required"`
	StoryTitle string              `json:"story_title" binding:"required"`
	Abilities  map[string]int      `json:"abilities"`
	Choices    []previousChoiceDTO `json:"choices"`
}

func (h *ChatHandler) initChatFromStory(c *gin.Context) {
	var req initChatFromStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid init-from-story body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	firstMessage := h.chat.InitFromStory(c.Request.Context(), service.StoryCompletionChat{
		SessionID:  req.SessionID,
		ChildID:    req.ChildID,
		ChildName:  req.ChildName,
		StoryID:    req.StoryID,
		StoryTitle: req.StoryTitle,
		Abilities:  req.Abilities,
		Choices:    toChoiceRecords(req.Choices),
	})

	c.JSON(http.StatusOK, chatResponse{
		SessionID:  req.SessionID,
		AIResponse: firstMessage,
	})
}

type chatChoicesRequest struct {
	SessionID int64 `json:"session_id" binding:"required"`
	ChildID   int64 `json:"child_id"`
}

func (h *ChatHandler) chatChoices(c *gin.Context) {
	var req chatChoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid chat choices body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	choices, emotion := h.chat.GenerateChoices(c.Request.Context(), req.SessionID)
	c.JSON(http.StatusOK, gin.H{
		"choices": choices,
		"emotion": emotion,
	})
}

func (h *ChatHandler) clearHistory(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("sessionId"), 10, 64)
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid sessionId", models.ErrValidation), h.logger)
		return
	}

	h.chat.ClearHistory(sessionID)
	c.JSON(http.StatusOK, gin.H{"message": "Chat history cleared"})
}
