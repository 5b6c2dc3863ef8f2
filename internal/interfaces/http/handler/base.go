package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appnotification "github.com/Projeto12026/crmcontador-sub000/internal/application/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/domain/notification"
	"github.com/Projeto12026/crmcontador-sub000/internal/infrastructure/logger"
	"github.com/Projeto12026/crmcontador-sub000/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// HandleError converts application and domain errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code, message := classifyError(err)
	if dto.GetHTTPStatus(code) >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed", zap.String("code", code), zap.Error(err))
	}
	h.ErrorWithCode(c, code, message)
}

// classifyError maps an error to an error code and a client-facing message
func classifyError(err error) (code, message string) {
	var (
		configErr *notification.ConfigurationError
		authErr   *notification.AuthError
	)
	switch {
	case errors.Is(err, notification.ErrRunInProgress):
		return dto.ErrCodeRunInProgress, "another dispatcher run is in progress"
	case errors.Is(err, notification.ErrCompanyNotFound):
		return dto.ErrCodeNotFound, "company not found"
	case errors.Is(err, appnotification.ErrEmptyMessage),
		errors.Is(err, appnotification.ErrNoPhone),
		errors.Is(err, notification.ErrInvalidPeriod):
		return dto.ErrCodeValidation, err.Error()
	case errors.As(err, &configErr):
		return dto.ErrCodeConfiguration, configErr.Error()
	case errors.As(err, &authErr):
		return dto.ErrCodeUpstream, authErr.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return dto.ErrCodeInternal, "run timed out"
	default:
		return dto.ErrCodeInternal, err.Error()
	}
}
