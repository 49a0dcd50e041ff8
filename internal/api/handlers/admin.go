package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/database"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/registry"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

type AdminHandler struct {
	registry *registry.Registry
	cache    *database.Cache
	logger   *logrus.Logger
}

func NewAdminHandler(reg *registry.Registry, cache *database.Cache, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		registry: reg,
		cache:    cache,
		logger:   logger,
	}
}

// HandleModels reports load status for every known model artifact.
func (h *AdminHandler) HandleModels(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Model status retrieved", h.registry.Status())
}

// HandleMetrics returns offline evaluation metrics, optionally filtered by
// model key.
func (h *AdminHandler) HandleMetrics(c *gin.Context) {
	if key := c.Query("model"); key != "" {
		metrics, ok := models.MetricsByKey(key)
		if !ok {
			utils.ErrorResponse(c, http.StatusNotFound, "Unknown model key: "+key, nil)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, "Model metrics retrieved", metrics)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Model metrics retrieved", models.OfflineMetrics)
}

// HandleConfusion returns held-out confusion matrices keyed by model.
func (h *AdminHandler) HandleConfusion(c *gin.Context) {
	matrices := make(map[string]models.ConfusionMatrix, len(models.OfflineMetrics))
	for _, m := range models.OfflineMetrics {
		matrices[m.Key] = m.Confusion
	}

	utils.SuccessResponse(c, http.StatusOK, "Confusion matrices retrieved", matrices)
}

// HandleCacheStats surfaces Redis memory and hit counters.
func (h *AdminHandler) HandleCacheStats(c *gin.Context) {
	if h.cache == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Cache is not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.cache.GetCacheStats(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get cache stats")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get cache stats", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Cache stats retrieved", stats)
}

// HandleClearCache flushes all cached responses.
func (h *AdminHandler) HandleClearCache(c *gin.Context) {
	if h.cache == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Cache is not configured", nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.cache.ClearAllCache(ctx); err != nil {
		h.logger.WithError(err).Error("Failed to clear cache")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to clear cache", err)
		return
	}

	h.logger.Info("Cache cleared")
	utils.SuccessResponse(c, http.StatusOK, "Cache cleared", nil)
}
