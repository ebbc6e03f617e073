package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// RunMonitoring runs a scheduled monitoring pass over stale profiles
func (h *Handlers) RunMonitoring(c *gin.Context) {
	result, err := h.manager.RunScheduledMonitoring(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to run monitoring", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunAllMonitoring polls every active profile regardless of staleness
func (h *Handlers) RunAllMonitoring(c *gin.Context) {
	results, err := h.manager.MonitorAllProfiles(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to run monitoring", err)
		return
	}

	total := 0
	for _, activities := range results {
		total += len(activities)
	}
	c.JSON(http.StatusOK, gin.H{
		"new_activities":   total,
		"platform_results": results,
	})
}

// MonitorProfile polls a single profile
func (h *Handlers) MonitorProfile(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid profile ID")
		return
	}

	activities, err := h.manager.MonitorSpecificProfile(c.Request.Context(), uint(id))
	if err != nil {
		internalError(c, "Failed to monitor profile", err)
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{
		"profile_id":     id,
		"new_activities": len(activities),
		"activities":     activities,
	})
}

// GetMonitoringStats returns profile and activity counters
func (h *Handlers) GetMonitoringStats(c *gin.Context) {
	stats, err := h.manager.GetMonitoringStats(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to load monitoring stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetActivities returns stored activities, newest first
func (h *Handlers) GetActivities(c *gin.Context) {
	skip, limit, ok := pagination(c)
	if !ok {
		return
	}

	filter := repository.ActivityFilter{
		Platform: c.Query("platform"),
		Offset:   skip,
		Limit:    limit,
	}
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, "Invalid member_id")
			return
		}
		memberID := uint(id)
		filter.MemberID = &memberID
	}

	activities, err := h.store.ListActivities(c.Request.Context(), filter)
	if err != nil {
		internalError(c, "Failed to list activities", err)
		return
	}
	if activities == nil {
		activities = []model.Activity{}
	}
	c.JSON(http.StatusOK, ActivityListResponse{Activities: activities, Skip: skip, Limit: limit})
}

// pagination reads skip and limit, writing a 400 response when invalid
func pagination(c *gin.Context) (skip, limit int, ok bool) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		badRequest(c, "Invalid skip")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		badRequest(c, "Invalid limit")
		return 0, 0, false
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return skip, limit, true
}
