package handler

import (
	"context"

	"arnime/internal/model"
	"arnime/internal/page"
	"arnime/internal/service"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler handles the weekly release schedule
type ScheduleHandler struct {
	view  View
	anime *service.AnimeService
}

// NewScheduleHandler creates a new ScheduleHandler
func NewScheduleHandler(view View, anime *service.AnimeService) *ScheduleHandler {
	return &ScheduleHandler{view: view, anime: anime}
}

// GetSchedule renders the release schedule grouped by day
// GET /schedule
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	ctrl := page.NewController(func(ctx context.Context, _ string) ([]model.ScheduleDay, error) {
		return h.anime.Schedule(ctx)
	})
	st := ctrl.Load(c.Request.Context(), "schedule")

	renderState(h.view, c, "schedule.html", st, gin.H{
		"Title": "Schedule",
		"Days":  st.Data,
	})
}
