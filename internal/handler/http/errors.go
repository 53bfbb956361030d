package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pandeypooja21/code-sync/internal/service"
)

// HandleServiceError maps business errors onto HTTP status codes in one
// place. Handlers never translate errors themselves.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWorkspaceNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrNodeNotFound),
		errors.Is(err, service.ErrNoSuchInvite):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyMember),
		errors.Is(err, service.ErrDuplicateInvite),
		errors.Is(err, service.ErrOwnerImmovable):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidParent),
		errors.Is(err, service.ErrCycleDetected),
		errors.Is(err, service.ErrInvalidName):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrTimeout):
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
