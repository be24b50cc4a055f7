package handlers

import (
	"errors"
	"net/http"

	"agent-ledger/internal/apperr"
	"agent-ledger/internal/auth"
	"agent-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch kind := apperr.KindOf(err); {
	case errors.Is(kind, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, apperr.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(kind, apperr.ErrTransientExternal):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status of its kind. Untyped errors are
// logged and hidden from the caller.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
