package api

import (
	"alcyxob/plan-tracker/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WorkoutHandler serves the workout catalog and the per-workout session views.
type WorkoutHandler struct {
	sessionService service.SessionService
}

func NewWorkoutHandler(sessionService service.SessionService) *WorkoutHandler {
	return &WorkoutHandler{sessionService: sessionService}
}

// ListWorkouts godoc
// @Summary List workouts
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Workout
// @Router /workouts [get]
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	workouts, err := h.sessionService.ListWorkouts(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, workouts)
}

func (h *WorkoutHandler) GetWorkout(c *gin.Context) {
	workout, err := h.sessionService.GetWorkout(c.Request.Context(), c.Param("workoutId"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

// StartSession godoc
// @Summary Resume or start a logging session
// @Description Returns the active session for the workout, or creates one seeded from the latest session.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Success 200 {object} domain.Session
// @Failure 404 {object} gin.H "Workout not found"
// @Router /workouts/{workoutId}/session [post]
func (h *WorkoutHandler) StartSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	session, err := h.sessionService.ResumeOrCreate(c.Request.Context(), userID, c.Param("workoutId"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *WorkoutHandler) RestoreLayout(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	table, err := h.sessionService.RestoreLayout(c.Request.Context(), userID, c.Param("workoutId"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// History godoc
// @Summary Completed sessions of a workout
// @Description Newest completion first.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout ID"
// @Success 200 {array} domain.Session
// @Router /workouts/{workoutId}/history [get]
func (h *WorkoutHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.History(c.Request.Context(), userID, c.Param("workoutId"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}
