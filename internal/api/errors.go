package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"safetour/internal/listening"
	"safetour/internal/store"
	"safetour/internal/usecase"
)

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, usecase.ErrNoTriggerWords),
		errors.Is(err, store.ErrInvalidContact):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrContactNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrResetRequired),
		errors.Is(err, usecase.ErrSessionArmed),
		errors.Is(err, usecase.ErrNotCancellable),
		errors.Is(err, usecase.ErrNoPendingAlert),
		errors.Is(err, listening.ErrNotListening):
		return http.StatusConflict
	case errors.Is(err, listening.ErrBacklogFull):
		return http.StatusTooManyRequests
	case errors.Is(err, usecase.ErrControllerClosed),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
