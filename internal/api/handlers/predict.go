package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/database"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/services"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

type PredictHandler struct {
	predictor *services.PredictionService
	cache     *database.Cache
	logger    *logrus.Logger
}

func NewPredictHandler(predictor *services.PredictionService, cache *database.Cache, logger *logrus.Logger) *PredictHandler {
	return &PredictHandler{
		predictor: predictor,
		cache:     cache,
		logger:    logger,
	}
}

// HandlePredict scores a batch of samples with the best available model.
func (h *PredictHandler) HandlePredict(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid predict request")
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if len(req.Samples) == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "At least one sample is required", nil)
		return
	}

	startTime := time.Now()
	results, err := h.predictor.PredictBatch(space, req.Samples)
	if err != nil {
		h.logger.WithError(err).WithField("space", space.Name).Error("Prediction failed")
		respondError(c, "Prediction failed", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"space":         space.Name,
		"samples":       len(req.Samples),
		"response_time": time.Since(startTime).Milliseconds(),
	}).Info("Prediction completed")

	utils.SuccessResponse(c, http.StatusOK, "Prediction completed", results)
}

// HandleCompare runs every loaded model for the space over one sample.
// Results are cached per feature vector since comparisons fan out across
// all candidates.
func (h *PredictHandler) HandleCompare(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	var req models.SingleSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	cacheKey := h.featureHash(req.Features)
	if h.cache != nil {
		cached := &models.ComparisonResponse{}
		if err := h.cache.GetCachedComparison(ctx, space.Name, cacheKey, cached); err == nil {
			h.logger.Debug("Comparison served from cache")
			utils.SuccessResponse(c, http.StatusOK, "Comparison completed", cached)
			return
		}
	}

	comparison, err := h.predictor.Compare(space, req.Features)
	if err != nil {
		h.logger.WithError(err).WithField("space", space.Name).Error("Comparison failed")
		respondError(c, "Comparison failed", err)
		return
	}

	if h.cache != nil {
		if err := h.cache.CacheComparison(ctx, space.Name, cacheKey, comparison, 5*time.Minute); err != nil {
			h.logger.WithError(err).Warn("Failed to cache comparison")
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Comparison completed", comparison)
}

// HandleExplain returns per-feature contributing factors for one sample.
func (h *PredictHandler) HandleExplain(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	var req models.SingleSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	explanation, err := h.predictor.Explain(space, req.Features)
	if err != nil {
		h.logger.WithError(err).WithField("space", space.Name).Error("Explanation failed")
		respondError(c, "Explanation failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Explanation completed", explanation)
}

func (h *PredictHandler) featureHash(features map[string]float64) string {
	// json.Marshal sorts map keys, so equal vectors hash equally.
	encoded, _ := json.Marshal(features)
	return utils.MD5Hash(string(encoded))
}
