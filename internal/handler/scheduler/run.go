package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	schedulerSvc "github.com/bugmaker2/Inspector/internal/scheduler"
)

// RunOnce runs a monitoring pass immediately
func RunOnce(s *schedulerSvc.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.RunOnce(c.Request.Context())
		if err != nil {
			logrus.Errorf("Manual monitoring run failed: %v", err)
			schedulerError(c, "Failed to run monitoring")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Monitoring completed successfully",
			"result":  result,
		})
	}
}
