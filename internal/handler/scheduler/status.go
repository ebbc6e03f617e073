package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	schedulerSvc "github.com/bugmaker2/Inspector/internal/scheduler"
)

// Status returns the current scheduler status
func Status(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := "stopped"
		if s.IsRunning() {
			state = "running"
		}

		c.JSON(http.StatusOK, gin.H{
			"status":           state,
			"interval_minutes": s.IntervalMinutes(),
			"next_run":         s.GetNextRun(),
			"last_run":         s.GetLastRun(),
		})
	}
}
