package api

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/service"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TableSaver queues table snapshots for background writing.
type TableSaver interface {
	Submit(userID, sessionID string, table domain.Table) error
	Flush(ctx context.Context, userID, sessionID string) error
	Status(userID, sessionID string) service.SaveStatus
}

// SessionHandler serves a single logging session.
type SessionHandler struct {
	sessionService service.SessionService
	exportService  service.ExportService
	saver          TableSaver
}

func NewSessionHandler(sessionService service.SessionService, exportService service.ExportService, saver TableSaver) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		exportService:  exportService,
		saver:          saver,
	}
}

// --- DTOs ---

type EditsRequest struct {
	Edits []domain.TableEdit `json:"edits" binding:"required"`
}

// CompleteRequest optionally names the plan day the session belongs to.
type CompleteRequest struct {
	Day *int `json:"day"`
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	session, err := h.sessionService.Get(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SaveTable godoc
// @Summary Auto-save a table snapshot
// @Description Accepts the full table and writes it in the background. Poll save-status for failures.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param table body domain.Table true "Full snapshot"
// @Success 202 {object} gin.H "Queued"
// @Failure 400 {object} gin.H "Invalid table"
// @Failure 429 {object} gin.H "Too many saves"
// @Router /sessions/{sessionId}/table [put]
func (h *SessionHandler) SaveTable(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var table domain.Table
	if err := c.ShouldBindJSON(&table); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	if err := h.saver.Submit(userID, c.Param("sessionId"), table); err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *SessionHandler) SaveStatus(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.saver.Status(userID, c.Param("sessionId")))
}

func (h *SessionHandler) ApplyEdits(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req EditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	session, err := h.sessionService.ApplyEdits(c.Request.Context(), userID, c.Param("sessionId"), req.Edits)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Complete godoc
// @Summary Complete a session
// @Description Stamps the completion time once. With a day, the matching plan entry is marked completed.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param body body CompleteRequest false "Plan day"
// @Success 200 {object} service.CompletionResult
// @Failure 404 {object} gin.H "Session not found"
// @Router /sessions/{sessionId}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req CompleteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	sessionID := c.Param("sessionId")
	// Snapshots accepted before completion must land first.
	if err := h.saver.Flush(c.Request.Context(), userID, sessionID); err != nil {
		respondWithServiceError(c, err)
		return
	}
	result, err := h.sessionService.Finish(c.Request.Context(), userID, sessionID, req.Day)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *SessionHandler) Export(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	result, err := h.exportService.Export(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
