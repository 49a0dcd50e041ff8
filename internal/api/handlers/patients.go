package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/repository"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

type PatientHandler struct {
	repoManager *repository.RepositoryManager
	logger      *logrus.Logger
}

func NewPatientHandler(repoManager *repository.RepositoryManager, logger *logrus.Logger) *PatientHandler {
	return &PatientHandler{
		repoManager: repoManager,
		logger:      logger,
	}
}

func (h *PatientHandler) HandleList(c *gin.Context) {
	patients, err := h.repoManager.Patient.GetAll()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list patients")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list patients", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Patients retrieved", patients)
}

func (h *PatientHandler) HandleCreate(c *gin.Context) {
	var patient models.Patient
	if err := c.ShouldBindJSON(&patient); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid patient format", err)
		return
	}

	if err := patient.Validate(); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid patient", err)
		return
	}

	if err := h.repoManager.Patient.Create(&patient); err != nil {
		h.logger.WithError(err).Error("Failed to create patient")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to create patient", err)
		return
	}

	h.logger.WithField("patient_id", patient.ID).Info("Patient created")
	utils.SuccessResponse(c, http.StatusCreated, "Patient created", patient)
}

func (h *PatientHandler) HandleGet(c *gin.Context) {
	id := c.Param("id")

	patient, err := h.repoManager.Patient.GetByID(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get patient")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if patient == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Patient not found", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Patient retrieved", patient)
}

func (h *PatientHandler) HandleUpdate(c *gin.Context) {
	id := c.Param("id")

	existing, err := h.repoManager.Patient.GetByID(id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if existing == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Patient not found", nil)
		return
	}

	var patient models.Patient
	if err := c.ShouldBindJSON(&patient); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid patient format", err)
		return
	}
	patient.ID = id
	patient.CreatedAt = existing.CreatedAt

	if err := patient.Validate(); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid patient", err)
		return
	}

	if err := h.repoManager.Patient.Update(&patient); err != nil {
		h.logger.WithError(err).Error("Failed to update patient")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to update patient", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Patient updated", patient)
}

func (h *PatientHandler) HandleDelete(c *gin.Context) {
	id := c.Param("id")

	existing, err := h.repoManager.Patient.GetByID(id)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get patient", err)
		return
	}
	if existing == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Patient not found", nil)
		return
	}

	if err := h.repoManager.Patient.Delete(id); err != nil {
		h.logger.WithError(err).Error("Failed to delete patient")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete patient", err)
		return
	}

	h.logger.WithField("patient_id", id).Info("Patient deleted")
	utils.SuccessResponse(c, http.StatusOK, "Patient deleted", nil)
}
