package handler

import (
	"errors"
	"net/http"

	"github.com/erp/reconciler/internal/domain/integration"
	"github.com/erp/reconciler/internal/domain/reconciliation"
	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/erp/reconciler/internal/interfaces/http/dto"
	"github.com/erp/reconciler/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, code, message string) {
	h.Error(c, http.StatusBadRequest, code, message)
}

// HandleError converts run errors to HTTP responses. Unknown errors are
// reported as failed runs with their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code := errorCode(err)
	h.ErrorWithCode(c, code, errorMessage(code, err))
}

// errorCode picks the response code for err, most specific first
func errorCode(err error) string {
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		return dto.NormalizeErrorCode(domainErr.Code)
	case errors.Is(err, reconciliation.ErrRunInProgress):
		return dto.ErrCodeRunInProgress
	case errors.Is(err, reconciliation.ErrLockUnavailable):
		return dto.ErrCodeLockUnavailable
	case errors.Is(err, integration.ErrPlatformAuthFailed):
		return dto.ErrCodePlatformAuthFailed
	case errors.Is(err, integration.ErrTokenRefreshFailed):
		return dto.ErrCodeTokenRefreshFailed
	case errors.Is(err, integration.ErrPlatformNotConfigured),
		errors.Is(err, integration.ErrCredentialsNotFound),
		errors.Is(err, integration.ErrCredentialsIncomplete):
		return dto.ErrCodePlatformNotConfigured
	default:
		return dto.ErrCodeRunFailed
	}
}

func errorMessage(code string, err error) string {
	switch code {
	case dto.ErrCodeRunInProgress:
		return "A reconciliation run is already in progress"
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && code == dto.NormalizeErrorCode(domainErr.Code) {
		return domainErr.Message
	}
	return err.Error()
}
