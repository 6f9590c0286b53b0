package api

import (
	"alcyxob/plan-tracker/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Name given to a clone when the caller does not pick one.
const defaultCloneName = "default"

// AdminHandler exposes maintenance operations behind the admin token.
type AdminHandler struct {
	cloneService service.CloneService
}

func NewAdminHandler(cloneService service.CloneService) *AdminHandler {
	return &AdminHandler{cloneService: cloneService}
}

type CloneWorkoutRequest struct {
	TargetID string `json:"targetId"`
	Name     string `json:"name"`
}

// CloneWorkout godoc
// @Summary Clone a workout with all of its sessions
// @Tags Admin
// @Accept json
// @Produce json
// @Param X-Admin-Token header string true "Admin token"
// @Param workoutId path string true "Source workout ID"
// @Param body body CloneWorkoutRequest false "Target ID and name"
// @Success 201 {object} service.CloneResult
// @Failure 404 {object} gin.H "Source not found"
// @Failure 409 {object} gin.H "Target exists"
// @Router /admin/workouts/{workoutId}/clone [post]
func (h *AdminHandler) CloneWorkout(c *gin.Context) {
	var req CloneWorkoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	if req.Name == "" {
		req.Name = defaultCloneName
	}

	result, err := h.cloneService.Clone(c.Request.Context(), service.CloneRequest{
		SourceID: c.Param("workoutId"),
		TargetID: req.TargetID,
		Name:     req.Name,
	})
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
