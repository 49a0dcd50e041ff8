package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/database"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/services"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

type ExaminationHandler struct {
	examService *services.ExaminationService
	cache       *database.Cache
	logger      *logrus.Logger
}

func NewExaminationHandler(examService *services.ExaminationService, cache *database.Cache, logger *logrus.Logger) *ExaminationHandler {
	return &ExaminationHandler{
		examService: examService,
		cache:       cache,
		logger:      logger,
	}
}

func (h *ExaminationHandler) HandleList(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	exams, err := h.examService.List(space, c.Query("patient_id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list examinations")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list examinations", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Examinations retrieved", exams)
}

// HandleCreate records an examination and scores it with the primary model.
func (h *ExaminationHandler) HandleCreate(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	var req models.CreateExaminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid examination format", err)
		return
	}

	exam, err := h.examService.Create(space, &req)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"space":      space.Name,
			"patient_id": req.PatientID,
		}).Error("Failed to create examination")
		respondError(c, "Failed to create examination", err)
		return
	}

	h.invalidateStats(c, space.Name)

	h.logger.WithFields(logrus.Fields{
		"space":          space.Name,
		"examination_id": exam.ID,
		"patient_id":     exam.PatientID,
		"prediction":     exam.ModelPrediction,
	}).Info("Examination recorded")

	utils.SuccessResponse(c, http.StatusCreated, "Examination recorded", exam)
}

func (h *ExaminationHandler) HandleDiagnosis(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.DiagnosisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid diagnosis format", err)
		return
	}

	exam, err := h.examService.SetDiagnosis(space, id, *req.Diagnosis)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"space":          space.Name,
			"examination_id": id,
		}).Error("Failed to record diagnosis")
		respondError(c, "Failed to record diagnosis", err)
		return
	}

	h.invalidateStats(c, space.Name)

	utils.SuccessResponse(c, http.StatusOK, "Diagnosis recorded", exam)
}

func (h *ExaminationHandler) HandleTrainingReady(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	exams, err := h.examService.TrainingReady(space)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list training-ready examinations", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Training-ready examinations retrieved", exams)
}

func (h *ExaminationHandler) HandleStats(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.cache != nil {
		if stats, err := h.cache.GetCachedTrainingStats(ctx, space.Name); err == nil {
			utils.SuccessResponse(c, http.StatusOK, "Training stats retrieved", stats)
			return
		}
	}

	stats, err := h.examService.Stats(space)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get training stats", err)
		return
	}

	if h.cache != nil {
		if err := h.cache.CacheTrainingStats(ctx, space.Name, stats, time.Minute); err != nil {
			h.logger.WithError(err).Warn("Failed to cache training stats")
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "Training stats retrieved", stats)
}

func (h *ExaminationHandler) HandleMarkTrained(c *gin.Context) {
	space, ok := parseSpace(c)
	if !ok {
		return
	}

	var req models.MarkTrainedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	updated, err := h.examService.MarkTrained(space, req.IDs)
	if err != nil {
		h.logger.WithError(err).Error("Failed to mark examinations trained")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to mark examinations trained", err)
		return
	}

	h.invalidateStats(c, space.Name)

	h.logger.WithFields(logrus.Fields{
		"space":     space.Name,
		"requested": len(req.IDs),
		"updated":   updated,
	}).Info("Examinations marked as trained")

	utils.SuccessResponse(c, http.StatusOK, "Examinations marked as trained", models.MarkTrainedResponse{Updated: updated})
}

func (h *ExaminationHandler) invalidateStats(c *gin.Context, space string) {
	if h.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.cache.InvalidateTrainingStats(ctx, space); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate training stats cache")
	}
}
