package handler

import (
	"time"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/notify"
)

// CustomSummaryRequest is the body of POST /summaries/custom
type CustomSummaryRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Title     string `json:"title"`
}

// SummaryResponse carries a summary and the text of the requested language
type SummaryResponse struct {
	*model.Summary
	Language string `json:"language"`
	Text     string `json:"text"`
}

// ActivityListResponse represents a page of activities
type ActivityListResponse struct {
	Activities []model.Activity `json:"activities"`
	Skip       int              `json:"skip"`
	Limit      int              `json:"limit"`
}

// NotificationListResponse represents the notification feed
type NotificationListResponse struct {
	Notifications []notify.Event `json:"notifications"`
	Total         int            `json:"total"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	LLM       string            `json:"llm"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
