package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/services"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

type TrainingHandler struct {
	examService *services.ExaminationService
	retrainer   *services.RetrainerService
	logger      *logrus.Logger
}

func NewTrainingHandler(examService *services.ExaminationService, retrainer *services.RetrainerService, logger *logrus.Logger) *TrainingHandler {
	return &TrainingHandler{
		examService: examService,
		retrainer:   retrainer,
		logger:      logger,
	}
}

// HandleExport returns the diagnosed examinations of a space as a tabular
// dataset, last column the doctor's label.
func (h *TrainingHandler) HandleExport(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	export, err := h.examService.ExportTrainingView(space)
	if err != nil {
		h.logger.WithError(err).Error("Failed to export training data")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to export training data", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Training data exported", export)
}

func (h *TrainingHandler) HandleCombinedStats(c *gin.Context) {
	stats, err := h.examService.CombinedStats()
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get training stats", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Training stats retrieved", stats)
}

// HandleRetrain retrains every model of a space from accumulated diagnosed
// examinations. Runs synchronously; the retrain CLI sets generous timeouts.
func (h *TrainingHandler) HandleRetrain(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	startTime := time.Now()
	h.logger.WithFields(logrus.Fields{
		"space": space.Name,
		"force": force,
	}).Info("Retrain requested")

	report, err := h.retrainer.Retrain(space, force)
	if err != nil {
		h.logger.WithError(err).WithField("space", space.Name).Error("Retrain failed")
		respondError(c, "Retrain failed", err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"space":          space.Name,
		"samples":        report.Samples,
		"skipped":        report.Skipped,
		"marked_trained": report.MarkedTrained,
		"duration":       time.Since(startTime).String(),
	}).Info("Retrain completed")

	utils.SuccessResponse(c, http.StatusOK, "Retrain completed", report)
}
