package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	schedulerHandler "github.com/bugmaker2/Inspector/internal/handler/scheduler"
	"github.com/bugmaker2/Inspector/internal/monitor"
	"github.com/bugmaker2/Inspector/internal/notify"
	"github.com/bugmaker2/Inspector/internal/repository"
	"github.com/bugmaker2/Inspector/internal/scheduler"
	"github.com/bugmaker2/Inspector/internal/summarizer"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store     repository.Store
	manager   *monitor.Manager
	generator *summarizer.Generator
	ring      *notify.Ring
	scheduler *scheduler.Scheduler
	location  *time.Location
}

// NewHandlers creates new HTTP handlers. Dates in query parameters are read
// in loc.
func NewHandlers(store repository.Store, manager *monitor.Manager, generator *summarizer.Generator, ring *notify.Ring, sched *scheduler.Scheduler, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{
		store:     store,
		manager:   manager,
		generator: generator,
		ring:      ring,
		scheduler: sched,
		location:  loc,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/monitoring/run", h.RunMonitoring)
		api.POST("/monitoring/run-all", h.RunAllMonitoring)
		api.POST("/monitoring/profiles/:id", h.MonitorProfile)
		api.GET("/monitoring/stats", h.GetMonitoringStats)
		api.GET("/monitoring/activities", h.GetActivities)

		api.GET("/summaries", h.GetSummaries)
		api.GET("/summaries/:id", h.GetSummary)
		api.POST("/summaries/daily", h.GenerateDailySummary)
		api.POST("/summaries/weekly", h.GenerateWeeklySummary)
		api.POST("/summaries/member/:id", h.GenerateMemberSummary)
		api.POST("/summaries/custom", h.GenerateCustomSummary)
		api.POST("/summaries/daily/stream", h.StreamDailySummary)
		api.POST("/summaries/weekly/stream", h.StreamWeeklySummary)

		api.GET("/notifications", h.GetNotifications)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)

		api.POST("/scheduler/start", schedulerHandler.Start(h.scheduler))
		api.POST("/scheduler/stop", schedulerHandler.Stop(h.scheduler))
		api.POST("/scheduler/run-once", schedulerHandler.RunOnce(h.scheduler))
		api.GET("/scheduler/status", schedulerHandler.Status(h.scheduler))
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		LLM:       "unavailable",
		Metrics:   make(map[string]string),
	}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.generator.CanSummarize() {
		response.LLM = "ok"
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Metrics["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
		Code:    http.StatusBadRequest,
	})
}

func internalError(c *gin.Context, message string, err error) {
	logrus.Errorf("%s: %v", message, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
