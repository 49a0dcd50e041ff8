// backend/internal/services/retrainer.go
package services

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/learn"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/registry"
	"github.com/minhvu-dev/cardiopredict/internal/repository"
)

// RetrainerService refits every model type of a feature space on the
// accumulated diagnosed examinations and atomically overwrites the
// persisted artifacts. The fitted scaler is reused, never refit.
type RetrainerService struct {
	repoManager *repository.RepositoryManager
	registry    *registry.Registry
	minSamples  int
	cvFolds     int
	logger      *logrus.Logger
}

func NewRetrainerService(
	repoManager *repository.RepositoryManager,
	reg *registry.Registry,
	minSamples int,
	cvFolds int,
	logger *logrus.Logger,
) *RetrainerService {
	return &RetrainerService{
		repoManager: repoManager,
		registry:    reg,
		minSamples:  minSamples,
		cvFolds:     cvFolds,
		logger:      logger,
	}
}

// Retrain runs the retraining job for one space. The min-sample guard
// skips quietly unless force is set; individual model failures are
// isolated so the remaining types still retrain. Consumed records are
// marked trained only when every model type succeeded, keeping them
// eligible for the next run after a partial failure.
func (s *RetrainerService) Retrain(space *models.FeatureSpace, force bool) (*models.RetrainReport, error) {
	report := &models.RetrainReport{Space: space.Name}

	stats, err := s.repoManager.Examination.Stats(space.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training stats: %w", err)
	}
	if stats.ReadyForTraining < int64(s.minSamples) && !force {
		guard := &models.InsufficientDataError{
			Space: space.Name,
			Ready: int(stats.ReadyForTraining),
			Min:   s.minSamples,
		}
		s.logger.WithFields(logrus.Fields{
			"space": space.Name,
			"ready": stats.ReadyForTraining,
			"min":   s.minSamples,
		}).Warn("Skipping retrain, not enough training-ready examinations")
		report.Skipped = true
		report.Reason = guard.Error()
		return report, nil
	}

	ready, err := s.repoManager.Examination.ListTrainingReady(space.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list training-ready examinations: %w", err)
	}

	X, y, err := s.trainingData(space)
	if err != nil {
		return nil, err
	}
	report.Samples = len(X)
	if len(X) < 2 {
		report.Skipped = true
		report.Reason = "fewer than 2 usable training samples"
		return report, nil
	}

	scaler := s.registry.Scaler(space.ScalerKey)
	if scaler == nil {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "scaler " + space.ScalerKey + " is not loaded"}
	}
	scaled, err := scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("scaling training data failed: %w", err)
	}

	// Base model types first; the stacking ensemble is rebuilt from
	// whichever bases fit successfully.
	var fittedBases []learn.Classifier
	var baseKeys []string
	allOK := true
	var stackingKey string
	for _, candidate := range space.Candidates {
		if strings.HasSuffix(candidate.Key, "_stacking") {
			stackingKey = candidate.Key
			continue
		}
		factory, ok := baseFactory(candidate.Key)
		if !ok {
			report.Models = append(report.Models, models.RetrainModelResult{
				ModelKey: candidate.Key,
				Status:   "failed",
				Error:    "no trainer registered for this model key",
			})
			allOK = false
			continue
		}

		result := s.retrainOne(space, candidate.Key, factory, scaled, y)
		report.Models = append(report.Models, result)
		if result.Status != "ok" {
			allOK = false
			continue
		}
		model := factory()
		// Refit outside CV for the persisted artifact; deterministic, so
		// this matches what retrainOne evaluated.
		if err := model.Fit(scaled, y); err == nil {
			fittedBases = append(fittedBases, model)
			baseKeys = append(baseKeys, candidate.Key)
		}
	}

	if stackingKey != "" {
		result := s.retrainStacking(space, stackingKey, fittedBases, baseKeys, scaled, y)
		report.Models = append(report.Models, result)
		if result.Status != "ok" {
			allOK = false
		}
	}

	if allOK && len(ready) > 0 {
		ids := make([]uint, 0, len(ready))
		for _, exam := range ready {
			ids = append(ids, exam.ID)
		}
		marked, err := s.repoManager.Examination.MarkTrained(space.Name, ids)
		if err != nil {
			s.logger.WithError(err).WithField("space", space.Name).Error("Failed to mark examinations as trained")
		} else {
			report.MarkedTrained = marked
		}
	}

	if err := s.registry.Reload(); err != nil {
		s.logger.WithError(err).Error("Registry reload after retrain failed")
	}
	return report, nil
}

// RetrainAll runs every space, isolating failures per space.
func (s *RetrainerService) RetrainAll(force bool) []*models.RetrainReport {
	var reports []*models.RetrainReport
	for _, space := range models.AllSpaces() {
		report, err := s.Retrain(space, force)
		if err != nil {
			s.logger.WithError(err).WithField("space", space.Name).Error("Retrain failed")
			report = &models.RetrainReport{Space: space.Name, Skipped: true, Reason: err.Error()}
		}
		reports = append(reports, report)
	}
	return reports
}

// trainingData builds the raw training matrix from diagnosed
// examinations. Records whose stored features no longer match the schema
// are skipped with a log line.
func (s *RetrainerService) trainingData(space *models.FeatureSpace) ([][]float64, []int, error) {
	exams, err := s.repoManager.Examination.List(space.Name, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list examinations: %w", err)
	}

	var X [][]float64
	var y []int
	for _, exam := range exams {
		if exam.DoctorDiagnosis == nil {
			continue
		}
		vec, err := space.Vector(exam.Features)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"space":   space.Name,
				"exam_id": exam.ID,
			}).Warn("Skipping examination with mismatched features")
			continue
		}
		X = append(X, vec)
		y = append(y, *exam.DoctorDiagnosis)
	}
	return X, y, nil
}

func (s *RetrainerService) retrainOne(space *models.FeatureSpace, key string, factory func() learn.Trainable, scaled [][]float64, y []int) models.RetrainModelResult {
	result := models.RetrainModelResult{ModelKey: key, Status: "ok"}

	accuracy, err := s.crossValidate(factory, scaled, y)
	if err != nil {
		s.logger.WithError(err).WithField("model", key).Error("Cross-validation failed")
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}
	result.CVAccuracy = accuracy

	model := factory()
	if err := model.Fit(scaled, y); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}
	if err := s.saveModel(key, model); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}

	s.logger.WithFields(logrus.Fields{
		"space":       space.Name,
		"model":       key,
		"cv_accuracy": accuracy,
	}).Info("Model retrained")
	return result
}

func (s *RetrainerService) retrainStacking(space *models.FeatureSpace, key string, bases []learn.Classifier, baseKeys []string, scaled [][]float64, y []int) models.RetrainModelResult {
	result := models.RetrainModelResult{ModelKey: key, Status: "ok"}
	if len(bases) == 0 {
		result.Status = "failed"
		result.Error = "no base model retrained successfully"
		return result
	}

	ensemble := learn.NewStackingEnsemble(bases)
	if err := ensemble.FitMeta(scaled, y); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}

	accuracy, err := s.crossValidate(func() learn.Trainable {
		var fresh []learn.Classifier
		for _, baseKey := range baseKeys {
			if factory, ok := baseFactory(baseKey); ok {
				fresh = append(fresh, factory())
			}
		}
		return learn.NewStackingEnsemble(fresh)
	}, scaled, y)
	if err != nil {
		s.logger.WithError(err).WithField("model", key).Warn("Stacking cross-validation failed, keeping fit")
	} else {
		result.CVAccuracy = accuracy
	}

	if err := s.saveModel(key, ensemble); err != nil {
		result.Status = "failed"
		result.Error = err.Error()
		return result
	}

	s.logger.WithFields(logrus.Fields{
		"space":       space.Name,
		"model":       key,
		"bases":       len(bases),
		"cv_accuracy": result.CVAccuracy,
	}).Info("Stacking ensemble retrained")
	return result
}

func (s *RetrainerService) crossValidate(factory func() learn.Trainable, X [][]float64, y []int) (float64, error) {
	folds := s.cvFolds
	if folds > len(X) {
		folds = len(X)
	}
	if folds < 2 {
		return 0, fmt.Errorf("not enough samples for cross-validation")
	}
	return learn.CrossValAccuracy(factory, X, y, folds, 42)
}

func (s *RetrainerService) saveModel(key string, model learn.Classifier) error {
	artifact, err := registry.EncodeModel(key, model)
	if err != nil {
		return err
	}
	return registry.SaveArtifact(registry.ModelPath(s.registry.Dir(), key), artifact)
}

func baseFactory(key string) (func() learn.Trainable, bool) {
	switch {
	case strings.HasSuffix(key, "_rf"):
		return func() learn.Trainable { return learn.NewRandomForest() }, true
	case strings.HasSuffix(key, "_gb"):
		return func() learn.Trainable { return learn.NewGradientBoosting() }, true
	case strings.HasSuffix(key, "_lr"):
		return func() learn.Trainable { return learn.NewLogisticRegression() }, true
	case strings.HasSuffix(key, "_nb"):
		return func() learn.Trainable { return learn.NewGaussianNB() }, true
	default:
		return nil, false
	}
}
