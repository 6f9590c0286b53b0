package api

import (
	"alcyxob/plan-tracker/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// respondWithServiceError maps service errors onto HTTP statuses.
func respondWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrScheduleEntryNotFound),
		errors.Is(err, service.ErrNoCompletedSession):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		abortWithError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrSessionCompleted),
		errors.Is(err, service.ErrSessionNotCompleted),
		errors.Is(err, service.ErrWorkoutExists):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrExportUnavailable):
		abortWithError(c, http.StatusNotImplemented, err.Error())
	case errors.Is(err, service.ErrStoreFailure):
		log.WithError(err).WithField("path", c.FullPath()).Error("store failure")
		abortWithError(c, http.StatusServiceUnavailable, "Storage temporarily unavailable, try again.")
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("unexpected error")
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred.")
	}
}

// requireUserID aborts with 401 when the token carried no user.
func requireUserID(c *gin.Context) (string, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil || userID == "" {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return "", false
	}
	return userID, true
}
