package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dinory-ai/internal/models"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

// handleServiceError maps service errors to HTTP statuses. Only caller
// input problems surface as 4xx; collaborator failures never reach here
// because the services absorb them.
func handleServiceError(c *gin.Context, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrSessionNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, APIError{Message: err.Error()})
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{Message: "internal server error"})
	}
}
