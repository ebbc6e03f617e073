package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bugmaker2/Inspector/internal/model"
	"github.com/bugmaker2/Inspector/internal/repository"
	"github.com/bugmaker2/Inspector/internal/summarizer"
)

// summaryError maps generator errors onto HTTP responses
func summaryError(c *gin.Context, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Failed to generate summary"
	switch {
	case errors.Is(err, summarizer.ErrUnavailable):
		status, code, message = http.StatusBadRequest, "llm_unavailable", "LLM summarization is not configured"
	case errors.Is(err, summarizer.ErrNoActivities):
		status, code, message = http.StatusNotFound, "no_activities", "No activities found in the requested window"
	case errors.Is(err, summarizer.ErrMemberNotFound):
		status, code, message = http.StatusNotFound, "member_not_found", "Member not found"
	case errors.Is(err, summarizer.ErrInvalidWindow):
		status, code, message = http.StatusBadRequest, "invalid_window", "Start date must not be after end date"
	case errors.Is(err, summarizer.ErrGenerationFailed):
		status, code, message = http.StatusBadGateway, "generation_failed", "Language generation failed"
	default:
		logrus.Errorf("Summary generation failed: %v", err)
	}
	c.JSON(status, ErrorResponse{Error: code, Message: message, Code: status})
}

// dateParam parses an optional query parameter. The zero time means absent.
func (h *Handlers) dateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := dateparse.ParseIn(raw, h.location)
	if err != nil {
		badRequest(c, fmt.Sprintf("Invalid %s: %s", name, raw))
		return time.Time{}, false
	}
	return t, true
}

// GenerateDailySummary generates the summary of ?date, today by default
func (h *Handlers) GenerateDailySummary(c *gin.Context) {
	date, ok := h.dateParam(c, "date")
	if !ok {
		return
	}
	summary, err := h.generator.GenerateDaily(c.Request.Context(), date)
	if err != nil {
		summaryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// GenerateWeeklySummary generates the summary of the week containing ?start_date
func (h *Handlers) GenerateWeeklySummary(c *gin.Context) {
	start, ok := h.dateParam(c, "start_date")
	if !ok {
		return
	}
	summary, err := h.generator.GenerateWeekly(c.Request.Context(), start)
	if err != nil {
		summaryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// GenerateMemberSummary generates the summary of one member
func (h *Handlers) GenerateMemberSummary(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid member ID")
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		badRequest(c, "Invalid days")
		return
	}
	start, ok := h.dateParam(c, "start_date")
	if !ok {
		return
	}
	end, ok := h.dateParam(c, "end_date")
	if !ok {
		return
	}

	summary, err := h.generator.GenerateMember(c.Request.Context(), uint(id), start, end, days)
	if err != nil {
		summaryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// GenerateCustomSummary generates a summary of an explicit window
func (h *Handlers) GenerateCustomSummary(c *gin.Context) {
	var req CustomSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	start, err := dateparse.ParseIn(req.StartDate, h.location)
	if err != nil {
		badRequest(c, "Invalid start_date")
		return
	}
	end, err := dateparse.ParseIn(req.EndDate, h.location)
	if err != nil {
		badRequest(c, "Invalid end_date")
		return
	}

	summary, err := h.generator.GenerateCustom(c.Request.Context(), start, end, req.Title)
	if err != nil {
		summaryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// StreamDailySummary streams the daily summary as server-sent events
func (h *Handlers) StreamDailySummary(c *gin.Context) {
	date, ok := h.dateParam(c, "date")
	if !ok {
		return
	}
	h.streamSummary(c, summarizer.Request{Type: model.SummaryDaily, Date: date})
}

// StreamWeeklySummary streams the weekly summary as server-sent events
func (h *Handlers) StreamWeeklySummary(c *gin.Context) {
	start, ok := h.dateParam(c, "start_date")
	if !ok {
		return
	}
	h.streamSummary(c, summarizer.Request{Type: model.SummaryWeekly, Date: start})
}

func (h *Handlers) streamSummary(c *gin.Context, req summarizer.Request) {
	if !h.generator.CanSummarize() {
		summaryError(c, summarizer.ErrUnavailable)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	emit := func(ev summarizer.ProgressEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			logrus.Errorf("Failed to encode progress event: %v", err)
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		c.Writer.Flush()
	}

	if _, err := h.generator.StreamSummary(c.Request.Context(), req, emit); err != nil {
		logrus.Warnf("Streamed %s summary ended without a result: %v", req.Type, err)
	}
}

// GetSummaries lists stored summaries, newest first
func (h *Handlers) GetSummaries(c *gin.Context) {
	skip, limit, ok := pagination(c)
	if !ok {
		return
	}
	summaries, err := h.store.ListSummaries(c.Request.Context(), repository.SummaryFilter{
		Type:   c.Query("type"),
		Offset: skip,
		Limit:  limit,
	})
	if err != nil {
		internalError(c, "Failed to list summaries", err)
		return
	}
	if summaries == nil {
		summaries = []model.Summary{}
	}
	c.JSON(http.StatusOK, summaries)
}

// GetSummary returns one summary. ?language=en selects the English text.
func (h *Handlers) GetSummary(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid summary ID")
		return
	}

	summary, err := h.store.GetSummary(c.Request.Context(), uint(id))
	if err != nil {
		internalError(c, "Failed to load summary", err)
		return
	}
	if summary == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Summary not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	resp := SummaryResponse{Summary: summary, Language: summarizer.LanguageZH, Text: summary.Content}
	switch c.DefaultQuery("language", summarizer.LanguageZH) {
	case summarizer.LanguageZH, "chinese":
	case summarizer.LanguageEN, "english":
		resp.Language = summarizer.LanguageEN
		if summary.ContentEn != nil {
			resp.Text = *summary.ContentEn
		}
	default:
		badRequest(c, "language must be zh or en")
		return
	}
	c.JSON(http.StatusOK, resp)
}
