package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"projectflow/internal/workflow"
)

// writeError maps workflow errors onto HTTP statuses. Rule conflicts are
// 409, bad input is 400, permission failures are 403.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, workflow.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, workflow.ErrDuplicateSubmission),
		errors.Is(err, workflow.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrValidation),
		errors.Is(err, workflow.ErrWindowViolation),
		errors.Is(err, workflow.ErrInvalidProgress),
		errors.Is(err, workflow.ErrOutOfBounds),
		errors.Is(err, workflow.ErrTooManyPhotos):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
