package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/health"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

type HealthHandler struct {
	checker *health.HealthChecker
	logger  *logrus.Logger
}

func NewHealthHandler(checker *health.HealthChecker, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

// HandleHealth is the liveness probe. It prefers the cached status written
// by the periodic checker and falls back to live checks.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	overall, err := h.checker.CheckCached(ctx)
	if err != nil {
		live := h.checker.CheckAll()
		overall = &live
	}

	services := make(map[string]string, len(overall.Services))
	for _, service := range overall.Services {
		services[service.Name] = service.Status
	}

	response := models.HealthResponse{
		Status:    overall.Status,
		Service:   "cardiopredict-api",
		Timestamp: time.Now().Format(time.RFC3339),
		Services:  services,
	}

	code := http.StatusOK
	if overall.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

// HandleHealthDetailed runs live checks and returns per-service timings.
func (h *HealthHandler) HandleHealthDetailed(c *gin.Context) {
	overall := h.checker.CheckAll()

	code := http.StatusOK
	if overall.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	utils.SuccessResponse(c, code, "Health check completed", overall)
}
