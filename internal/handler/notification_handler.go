package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bugmaker2/Inspector/internal/notify"
)

// GetNotifications returns the most recent notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		badRequest(c, "Invalid limit")
		return
	}
	unread, err := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	if err != nil {
		badRequest(c, "Invalid unread flag")
		return
	}

	events := h.ring.List(limit, unread)
	if events == nil {
		events = []notify.Event{}
	}
	c.JSON(http.StatusOK, NotificationListResponse{Notifications: events, Total: h.ring.Len()})
}

// MarkNotificationRead flags one notification as read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if !h.ring.MarkRead(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Notification not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
