// backend/internal/services/examinations.go
package services

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/repository"
)

// ExaminationService drives the continuous-learning lifecycle: a stored
// prediction waits for a clinician's ground truth and then becomes
// training data.
type ExaminationService struct {
	repoManager *repository.RepositoryManager
	predictor   *PredictionService
	logger      *logrus.Logger
}

func NewExaminationService(
	repoManager *repository.RepositoryManager,
	predictor *PredictionService,
	logger *logrus.Logger,
) *ExaminationService {
	return &ExaminationService{
		repoManager: repoManager,
		predictor:   predictor,
		logger:      logger,
	}
}

// Create validates the patient, runs the space's primary model, and
// persists the examination with diagnosis fields empty.
func (s *ExaminationService) Create(space *models.FeatureSpace, req *models.CreateExaminationRequest) (*models.Examination, error) {
	patient, err := s.repoManager.Patient.GetByID(req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient lookup failed: %w", err)
	}
	if patient == nil {
		return nil, &models.NotFoundError{Resource: "patient", ID: req.PatientID}
	}

	result, err := s.predictor.PredictPrimary(space, req.Features)
	if err != nil {
		return nil, err
	}

	prediction := 0
	if result.RiskScore > 0.5 {
		prediction = 1
	}

	examDate := req.ExamDate
	if examDate == "" {
		examDate = time.Now().Format("2006-01-02")
	}

	exam := &models.Examination{
		PatientID:       req.PatientID,
		ExamDate:        examDate,
		Features:        models.FeatureMap(req.Features),
		ModelPrediction: prediction,
		ModelConfidence: round4(result.Confidence),
	}
	if err := s.repoManager.Examination.Create(space.Name, exam); err != nil {
		return nil, fmt.Errorf("failed to persist examination: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"space":      space.Name,
		"exam_id":    exam.ID,
		"patient_id": exam.PatientID,
		"prediction": exam.ModelPrediction,
	}).Info("Examination created")
	return exam, nil
}

// SetDiagnosis records the clinician's ground truth with today's date.
// Calling it again on the same id overwrites the earlier value.
func (s *ExaminationService) SetDiagnosis(space *models.FeatureSpace, id uint, diagnosis int) (*models.Examination, error) {
	if diagnosis != 0 && diagnosis != 1 {
		return nil, fmt.Errorf("diagnosis must be 0 or 1, got %d", diagnosis)
	}

	today := time.Now().Format("2006-01-02")
	exam, err := s.repoManager.Examination.UpdateDiagnosis(space.Name, id, diagnosis, today)
	if err != nil {
		return nil, fmt.Errorf("failed to update diagnosis: %w", err)
	}
	if exam == nil {
		return nil, &models.NotFoundError{Resource: "examination", ID: fmt.Sprintf("%d", id)}
	}

	s.logger.WithFields(logrus.Fields{
		"space":     space.Name,
		"exam_id":   id,
		"diagnosis": diagnosis,
	}).Info("Diagnosis recorded")
	return exam, nil
}

func (s *ExaminationService) List(space *models.FeatureSpace, patientID string) ([]models.Examination, error) {
	return s.repoManager.Examination.List(space.Name, patientID)
}

func (s *ExaminationService) GetByID(space *models.FeatureSpace, id uint) (*models.Examination, error) {
	exam, err := s.repoManager.Examination.GetByID(space.Name, id)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, &models.NotFoundError{Resource: "examination", ID: fmt.Sprintf("%d", id)}
	}
	return exam, nil
}

func (s *ExaminationService) TrainingReady(space *models.FeatureSpace) ([]models.Examination, error) {
	return s.repoManager.Examination.ListTrainingReady(space.Name)
}

func (s *ExaminationService) Stats(space *models.FeatureSpace) (*models.TrainingStats, error) {
	return s.repoManager.Examination.Stats(space.Name)
}

func (s *ExaminationService) MarkTrained(space *models.FeatureSpace, ids []uint) (int64, error) {
	updated, err := s.repoManager.Examination.MarkTrained(space.Name, ids)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"space":     space.Name,
		"requested": len(ids),
		"updated":   updated,
	}).Info("Examinations marked as trained")
	return updated, nil
}

// CombinedStats sums both spaces for the overview endpoint.
func (s *ExaminationService) CombinedStats() (*models.CombinedTrainingStats, error) {
	lifestyle, err := s.Stats(&models.LifestyleSpace)
	if err != nil {
		return nil, err
	}
	clinical, err := s.Stats(&models.ClinicalSpace)
	if err != nil {
		return nil, err
	}
	return &models.CombinedTrainingStats{
		Lifestyle: lifestyle,
		Clinical:  clinical,
		Total: &models.TrainingStats{
			TotalExaminations: lifestyle.TotalExaminations + clinical.TotalExaminations,
			PendingDiagnosis:  lifestyle.PendingDiagnosis + clinical.PendingDiagnosis,
			ReadyForTraining:  lifestyle.ReadyForTraining + clinical.ReadyForTraining,
			AlreadyTrained:    lifestyle.AlreadyTrained + clinical.AlreadyTrained,
		},
	}, nil
}

// ExportTrainingView projects diagnosed examinations onto the space's
// feature columns plus a target column. Derived, never stored.
func (s *ExaminationService) ExportTrainingView(space *models.FeatureSpace) (*models.TrainingExportResponse, error) {
	exams, err := s.repoManager.Examination.List(space.Name, "")
	if err != nil {
		return nil, err
	}

	columns := append(append([]string{}, space.Features...), "target")
	response := &models.TrainingExportResponse{
		Space:   space.Name,
		Columns: columns,
		Rows:    []map[string]float64{},
	}
	for _, exam := range exams {
		if exam.DoctorDiagnosis == nil {
			continue
		}
		row := make(map[string]float64, len(columns))
		for _, name := range space.Features {
			row[name] = exam.Features[name]
		}
		row["target"] = float64(*exam.DoctorDiagnosis)
		response.Rows = append(response.Rows, row)
	}
	return response, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
