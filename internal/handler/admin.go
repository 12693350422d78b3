package handler

import (
	"context"
	"net/http"
	"time"

	"arnime/internal/model"
	"arnime/internal/repository"
	"arnime/internal/store"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles admin-related endpoints
type AdminHandler struct {
	metrics      *repository.Metrics
	store        store.Store
	storeBackend string
	authEnabled  bool
}

// NewAdminHandler creates a new AdminHandler; metrics may be nil
func NewAdminHandler(metrics *repository.Metrics, s store.Store, storeBackend string, authEnabled bool) *AdminHandler {
	return &AdminHandler{
		metrics:      metrics,
		store:        s,
		storeBackend: storeBackend,
		authEnabled:  authEnabled,
	}
}

// GetStatus returns service status
// GET /api/v1/status
func (h *AdminHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"store_backend":   h.storeBackend,
		"auth_enabled":    h.authEnabled,
		"metrics_enabled": h.metrics != nil,
	})
}

// Health reports liveness
// GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Ready reports whether the store answers
// GET /ready
func (h *AdminHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *AdminHandler) metricsDisabled(c *gin.Context) bool {
	if h.metrics != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, model.APIResponse{
		Code:  http.StatusServiceUnavailable,
		Error: "metrics are disabled",
	})
	return true
}

// GetAnalytics returns API analytics
// GET /api/v1/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	if h.metricsDisabled(c) {
		return
	}

	stats, err := h.metrics.GetOverallStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: stats,
	})
}

// GetEndpointStats returns stats for one route pattern
// GET /api/v1/analytics/endpoint?path=/anime/:slug
func (h *AdminHandler) GetEndpointStats(c *gin.Context) {
	if h.metricsDisabled(c) {
		return
	}

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, model.APIResponse{
			Code:  http.StatusBadRequest,
			Error: "path parameter required",
		})
		return
	}

	stats, err := h.metrics.GetRouteStats(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code: http.StatusOK,
		Data: stats,
	})
}

// ResetAnalytics resets all analytics data
// DELETE /api/v1/analytics
func (h *AdminHandler) ResetAnalytics(c *gin.Context) {
	if h.metricsDisabled(c) {
		return
	}

	if err := h.metrics.ResetMetrics(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, model.APIResponse{
			Code:  http.StatusInternalServerError,
			Error: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.APIResponse{
		Code:    http.StatusOK,
		Message: "all analytics data has been reset",
	})
}
