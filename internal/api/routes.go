package api

import (
	"alcyxob/plan-tracker/internal/metrics"
	"alcyxob/plan-tracker/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterParams struct {
	JWTSecret      string
	AdminTokenHash string

	ScheduleService service.ScheduleService
	SessionService  service.SessionService
	CloneService    service.CloneService
	ExportService   service.ExportService
	Saver           TableSaver

	Metrics         *metrics.Manager
	MetricsGatherer prometheus.Gatherer // nil hides /metrics

	// RateLimiter is optional; AutoSavePerMinute applies to table saves.
	RateLimiter       RequestRateLimiter
	AutoSavePerMinute int
}

func SetupRoutes(router *gin.Engine, params RouterParams) {
	planHandler := NewPlanHandler(params.ScheduleService)
	workoutHandler := NewWorkoutHandler(params.SessionService)
	sessionHandler := NewSessionHandler(params.SessionService, params.ExportService, params.Saver)
	adminHandler := NewAdminHandler(params.CloneService)

	router.Use(RequestMetrics(params.Metrics))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if params.MetricsGatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(params.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(params.JWTSecret))
	{
		// --- Plan ---
		protected.GET("/plan", planHandler.GetPlan)
		protected.GET(StreamPathSuffix, planHandler.StreamPlan)
		protected.PUT("/plan/days/:day/workouts/:workoutId", planHandler.ToggleEntry)

		// --- Workouts ---
		protected.GET("/workouts", workoutHandler.ListWorkouts)
		protected.GET("/workouts/:workoutId", workoutHandler.GetWorkout)
		protected.POST("/workouts/:workoutId/session", workoutHandler.StartSession)
		protected.GET("/workouts/:workoutId/restore-layout", workoutHandler.RestoreLayout)
		protected.GET("/workouts/:workoutId/history", workoutHandler.History)

		// --- Sessions ---
		saveHandlers := []gin.HandlerFunc{sessionHandler.SaveTable}
		if params.RateLimiter != nil && params.AutoSavePerMinute > 0 {
			saveHandlers = append([]gin.HandlerFunc{RateLimit(params.RateLimiter, "autosave", params.AutoSavePerMinute)}, saveHandlers...)
		}
		protected.GET("/history/:sessionId", sessionHandler.GetSession)
		protected.GET("/sessions/:sessionId", sessionHandler.GetSession)
		protected.PUT("/sessions/:sessionId/table", saveHandlers...)
		protected.GET("/sessions/:sessionId/save-status", sessionHandler.SaveStatus)
		protected.POST("/sessions/:sessionId/edits", sessionHandler.ApplyEdits)
		protected.POST("/sessions/:sessionId/complete", sessionHandler.Complete)
		protected.POST("/sessions/:sessionId/export", sessionHandler.Export)
	}

	admin := apiV1.Group("/admin")
	admin.Use(AdminMiddleware(params.AdminTokenHash))
	{
		admin.POST("/workouts/:workoutId/clone", adminHandler.CloneWorkout)
	}
}
