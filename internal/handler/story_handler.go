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

// StoryHandler serves the interactive-story endpoints.
type StoryHandler struct {
	narrative *service.NarrativeService
	recommend *service.RecommendationService
	logger    *zap.Logger
}

// NewStoryHandler creates a StoryHandler.
func NewStoryHandler(narrative *service.NarrativeService, recommend *service.RecommendationService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		narrative: narrative,
		recommend: recommend,
		logger:    logger.Named("StoryHandler"),
	}
}

// RegisterRoutes registers the /ai story routes.
func (h *StoryHandler) RegisterRoutes(r *gin.Engine) {
	aiGroup := r.Group("/ai")
	{
		aiGroup.POST("/story/scene", h.generateScene)
		aiGroup.POST("/story/choice", h.submitChoice)
		aiGroup.GET("/story/session/:storyId", h.getSession)
		aiGroup.POST("/recommend-stories", h.recommendStories)
	}
}

type previousChoiceDTO struct {
	SceneNumber int    `json:"sceneNumber"`
	ChoiceText  string `json:"choiceText"`
	AbilityType string `json:"abilityType"`
}

type generateSceneRequest struct {
	StoryID         string              `json:"storyId" binding:"required"`
	ChildID         int64               `json:"childId" binding:"required"`
	ChildName       string              `json:"childName"`
	SeedTitle       string              `json:"seedTitle"`
	SceneNumber     int                 `json:"sceneNumber" binding:"required"`
	Emotion         string              `json:"emotion"`
	Interests       []string            `json:"interests"`
	PreviousChoices []previousChoiceDTO `json:"previousChoices"`
}

type choiceDTO struct {
	ChoiceID      int    `json:"choiceId"`
	ChoiceText    string `json:"choiceText"`
	AbilityType   string `json:"abilityType"`
	AbilityPoints int    `json:"abilityPoints"`
}

type generateSceneResponse struct {
	SceneNumber         int            `json:"sceneNumber"`
	Content             string         `json:"content"`
	ImagePrompt         string         `json:"imagePrompt"`
	Choices             []choiceDTO    `json:"choices"`
	IsEnding            bool           `json:"isEnding"`
	Title               string         `json:"title,omitempty"`
	CharacterDescriptor string         `json:"characterDescriptor,omitempty"`
	AbilityTotals       map[string]int `json:"abilityTotals"`
	Terminal            bool           `json:"terminal"`
}

func (h *StoryHandler) generateScene(c *gin.Context) {
	var req generateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid scene request body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	payload, err := h.narrative.GenerateScene(c.Request.Context(), service.SceneParams{
		StoryID:         req.StoryID,
		ChildID:         req.ChildID,
		ChildName:       req.ChildName,
		SeedTitle:       req.SeedTitle,
		SceneNumber:     req.SceneNumber,
		Emotion:         req.Emotion,
		Interests:       req.Interests,
		PreviousChoices: toChoiceRecords(req.PreviousChoices),
	})
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, toSceneResponse(payload))
}

type submitChoiceRequest struct {
	StoryID      string `json:"storyId" binding:"required"`
	ChildID      int64  `json:"childId" binding:"required"`
	SceneNumber  int    `json:"sceneNumber" binding:"required"`
	ChoiceText   string `json:"choiceText" binding:"required"`
	IsCustom     bool   `json:"isCustom"`
	SceneContext string `json:"sceneContext"`
}

type submitChoiceResponse struct {
	IsNegative     bool           `json:"isNegative"`
	NegativeReason string         `json:"negativeReason,omitempty"`
	AbilityType    string         `json:"abilityType,omitempty"`
	AbilityPoints  int            `json:"abilityPoints"`
	Feedback       string         `json:"feedback"`
	AbilityTotals  map[string]int `json:"abilityTotals"`
}

func (h *StoryHandler) submitChoice(c *gin.Context) {
	var req submitChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid choice request body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}

	result, err := h.narrative.SubmitChoice(c.Request.Context(), service.ChoiceParams{
		StoryID:      req.StoryID,
		ChildID:      req.ChildID,
		SceneNumber:  req.SceneNumber,
		ChoiceText:   req.ChoiceText,
		Custom:       req.IsCustom,
		SceneContext: req.SceneContext,
	})
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, submitChoiceResponse{
		IsNegative:     result.Classification.IsNegative,
		NegativeReason: result.Classification.NegativeReason,
		AbilityType:    string(result.Classification.AbilityType),
		AbilityPoints:  result.Classification.AbilityPoints,
		Feedback:       result.Classification.Feedback,
		AbilityTotals:  toEnglishTotals(result.AbilityTotals),
	})
}

type sessionResponse struct {
	StoryID            string         `json:"storyId"`
	ChildID            int64          `json:"childId"`
	Title              string         `json:"title"`
	CurrentSceneNumber int            `json:"currentSceneNumber"`
	AbilityTotals      map[string]int `json:"abilityTotals"`
	Terminal           bool           `json:"terminal"`
}

func (h *StoryHandler) getSession(c *gin.Context) {
	storyID := c.Param("storyId")
	childID, err := strconv.ParseInt(c.Query("childId"), 10, 64)
	if err != nil {
		handleServiceError(c, fmt.Errorf("%w: invalid childId", models.ErrValidation), h.logger)
		return
	}

	session, err := h.narrative.Session(c.Request.Context(), childID, storyID)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		StoryID:            session.StoryID,
		ChildID:            session.ChildID,
		Title:              session.Title,
		CurrentSceneNumber: session.CurrentSceneNumber,
		AbilityTotals:      toEnglishTotals(session.Totals()),
		Terminal:           session.Terminal,
	})
}

type recommendStoriesRequest struct {
	Emotion   string   `json:"emotion"`
	Interests []string `json:"interests"`
	ChildID   int64    `json:"childId"`
	Limit     int      `json:"limit"`
}

func (h *StoryHandler) recommendStories(c *gin.Context) {
	var req recommendStoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid recommendation request body", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrValidation, err), h.logger)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	recommendations := h.recommend.RecommendStories(c.Request.Context(), req.Emotion, req.Interests, req.Limit)
	c.JSON(http.StatusOK, recommendations)
}

func toChoiceRecords(dtos []previousChoiceDTO) []models.ChoiceRecord {
	records := make([]models.ChoiceRecord, 0, len(dtos))
	for _, dto := range dtos {
		records = append(records, models.ChoiceRecord{
			SceneNumber: dto.SceneNumber,
			ChoiceText:  dto.ChoiceText,
			AbilityType: models.AbilityType(dto.AbilityType),
		})
	}
	return records
}

func toSceneResponse(payload service.ScenePayload) generateSceneResponse {
	choices := make([]choiceDTO, 0, len(payload.Scene.Choices))
	for _, choice := range payload.Scene.Choices {
		choices = append(choices, choiceDTO{
			ChoiceID:      choice.ChoiceID,
			ChoiceText:    choice.ChoiceText,
			AbilityType:   string(choice.AbilityType),
			AbilityPoints: choice.AbilityPoints,
		})
	}
	return generateSceneResponse{
		SceneNumber:         payload.Scene.SceneNumber,
		Content:             payload.Scene.Content,
		ImagePrompt:         payload.Scene.ImagePrompt,
		Choices:             choices,
		IsEnding:            payload.Scene.IsEnding,
		Title:               payload.Title,
		CharacterDescriptor: payload.CharacterDescriptor,
		AbilityTotals:       toEnglishTotals(payload.AbilityTotals),
		Terminal:            payload.Terminal,
	}
}

// toEnglishTotals renders the ledger with the backend's English keys.
func toEnglishTotals(totals map[models.AbilityType]int) map[string]int {
	result := make(map[string]int, len(totals))
	for ability, points := range totals {
		result[ability.EnglishName()] = points
	}
	return result
}
