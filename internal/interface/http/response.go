package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError is the error part of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalCount int       `json:"total_count,omitempty"`
	Page       int       `json:"page,omitempty"`
	PageSize   int       `json:"page_size,omitempty"`
	HasMore    bool      `json:"has_more,omitempty"`
}

func writeJSON(c *gin.Context, status int, data interface{}) {
	writeJSONWithMeta(c, status, data, nil)
}

func writeJSONWithMeta(c *gin.Context, status int, data interface{}, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Timestamp = time.Now().UTC()

	c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      meta,
		RequestID: c.GetString(ctxKeyRequestID),
	})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: c.GetString(ctxKeyRequestID),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorCodes gives stable codes to the domain results a client reacts to.
var errorCodes = []struct {
	err  error
	code string
}{
	{shared.ErrLessonAlreadyStarted, "lesson_already_started"},
	{shared.ErrLessonAlreadyCompleted, "lesson_already_completed"},
	{shared.ErrActivityAlreadyCompleted, "activity_already_completed"},
	{shared.ErrLessonNotStarted, "lesson_not_started"},
	{shared.ErrNotificationNotFound, "notification_not_found"},
	{shared.ErrUnknownLesson, "unknown_lesson"},
	{shared.ErrUnknownActivity, "unknown_activity"},
	{shared.ErrInvalidScore, "invalid_score"},
	{shared.ErrInvalidProgress, "invalid_progress"},
	{shared.ErrInvalidCredentials, "invalid_credentials"},
	{shared.ErrInvalid2FACode, "invalid_2fa_code"},
	{shared.ErrInvalidToken, "invalid_token"},
}

func errorCode(err error, fallback string) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return fallback
}

func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// handleError maps an application error onto the HTTP status space:
// not found 404, already done 409, invalid input 400, auth 401.
func (s *Server) handleError(c *gin.Context, err error) {
	switch {
	case shared.IsNoOp(err):
		writeError(c, http.StatusConflict, errorCode(err, "already_processed"), errorMessage(err))
	case shared.IsNotFound(err):
		writeError(c, http.StatusNotFound, errorCode(err, "not_found"), errorMessage(err))
	case shared.IsValidation(err):
		writeError(c, http.StatusBadRequest, errorCode(err, "invalid_input"), errorMessage(err))
	case shared.IsUnauthorized(err):
		writeError(c, http.StatusUnauthorized, errorCode(err, "unauthorized"), errorMessage(err))
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, shared.ErrTimeout):
		writeError(c, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, context.Canceled):
		writeError(c, 499, "canceled", "request canceled")
	case shared.IsRetryable(err):
		writeError(c, http.StatusServiceUnavailable, "service_unavailable", "service temporarily unavailable")
	default:
		logger.FromContext(c.Request.Context()).Error("request failed",
			logger.String("route", c.FullPath()), logger.Err(err))
		writeError(c, http.StatusInternalServerError, "internal_server_error", "an unexpected error occurred")
	}
}
