package api

import (
	"alcyxob/plan-tracker/internal/plan"
	"alcyxob/plan-tracker/internal/service"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PlanHandler serves the user's schedule.
type PlanHandler struct {
	scheduleService service.ScheduleService
}

func NewPlanHandler(scheduleService service.ScheduleService) *PlanHandler {
	return &PlanHandler{scheduleService: scheduleService}
}

// ToggleEntryRequest is the body of a manual completion override.
type ToggleEntryRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// GetPlan godoc
// @Summary Get the current plan
// @Description Returns the schedule split into past, today and upcoming days. Initializes the default plan on first use.
// @Tags Plan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.ScheduleView
// @Failure 401 {object} gin.H "Unauthorized"
// @Failure 503 {object} gin.H "Storage unavailable"
// @Router /plan [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	view, err := h.scheduleService.View(c.Request.Context(), userID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleEntry godoc
// @Summary Mark a plan entry completed or not
// @Tags Plan
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param day path int true "Plan day, 0-based"
// @Param workoutId path string true "Workout ID"
// @Param body body ToggleEntryRequest true "New state"
// @Success 200 {object} domain.ScheduleView
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "No such entry"
// @Router /plan/days/{day}/workouts/{workoutId} [put]
func (h *PlanHandler) ToggleEntry(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid day format.")
		return
	}
	var req ToggleEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.scheduleService.ToggleCompleted(ctx, userID, day, c.Param("workoutId"), *req.Completed); err != nil {
		respondWithServiceError(c, err)
		return
	}
	view, err := h.scheduleService.View(ctx, userID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StreamPlan pushes the schedule view as server-sent events after every change.
func (h *PlanHandler) StreamPlan(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.scheduleService.EnsureInitialized(ctx, userID, ""); err != nil {
		respondWithServiceError(c, err)
		return
	}
	updates, unsubscribe, err := h.scheduleService.Subscribe(ctx, userID)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case state, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("plan", plan.BuildView(state))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
