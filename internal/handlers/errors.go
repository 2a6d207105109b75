package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/middleware"
)

// respondError writes the status implied by err. Client errors echo the message;
// server errors return fallback so storage details do not leak.
func respondError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	status := apperrors.HTTPStatus(err)
	body := gin.H{"error": err.Error()}

	var vErr *apperrors.ValidationError
	if errors.As(err, &vErr) && vErr.Field != "" {
		body["field"] = vErr.Field
	}
	if apperrors.IsRetryable(err) {
		body["retryable"] = true
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error(fallback, slog.String("error", err.Error()), slog.Int("status", status))
		body["error"] = fallback
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", "1")
		}
	default:
		logger.Warn(fallback, slog.String("error", err.Error()), slog.Int("status", status))
	}
	c.JSON(status, body)
}

// requireUserID fetches the authenticated user or writes 401.
func requireUserID(c *gin.Context, logger *slog.Logger) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}
