package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	schedulerSvc "github.com/bugmaker2/Inspector/internal/scheduler"
)

// Start starts the monitoring and summary jobs
func Start(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Start(); err != nil {
			logrus.Errorf("Failed to start scheduler: %v", err)
			schedulerError(c, "Failed to start scheduler")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Scheduler started successfully",
			"status":  "running",
		})
	}
}

// Stop stops the monitoring and summary jobs
func Stop(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Stop(); err != nil {
			schedulerError(c, "Failed to stop scheduler")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Scheduler stopped successfully",
			"status":  "stopped",
		})
	}
}
