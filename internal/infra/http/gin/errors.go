package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"marketplace/internal/app/apperr"
)

const idempotencyHeader = "Idempotency-Key"

type errorPayload struct {
	Kind    string              `json:"kind"`
	Message string              `json:"message"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

func errorBody(err *apperr.Error) gin.H {
	return gin.H{"error": errorPayload{Kind: string(err.Kind), Message: err.Message, Fields: err.Fields}}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders err; internal causes are logged and never leave the process.
func respondError(c *gin.Context, logger *slog.Logger, err error, attrs ...any) {
	appErr := apperr.From(err)
	status := statusFor(appErr.Kind)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(c.Request.Context(), "request failed", append(attrs, "err", err)...)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody(appErr))
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(apperr.Validation(apperr.FieldError{Field: "body", Rule: "json", Message: msg})))
}

func parseIntQuery(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(apperr.Validation(apperr.FieldError{
			Field: key, Rule: "number", Message: key + " must be a non-negative integer",
		})))
		return 0, false
	}
	return v, true
}
