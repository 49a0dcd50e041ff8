// backend/internal/services/predictor.go
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/learn"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/registry"
)

// ModelSource is the registry surface the selector needs. Satisfied by
// *registry.Registry; tests substitute a fixture.
type ModelSource interface {
	Model(key string) *registry.ModelEntry
	Scaler(key string) *learn.StandardScaler
}

type PredictionService struct {
	source ModelSource
	logger *logrus.Logger
}

func NewPredictionService(source ModelSource, logger *logrus.Logger) *PredictionService {
	return &PredictionService{
		source: source,
		logger: logger,
	}
}

// modelRun is one candidate that produced a probability for the batch.
type modelRun struct {
	candidate models.ModelCandidate
	entry     *registry.ModelEntry
	probs     []float64
}

// scale validates each sample against the space's feature schema and
// applies the space's fitted scaler. Validation happens before any
// transform so a malformed vector can never reach a model.
func (s *PredictionService) scale(space *models.FeatureSpace, samples []map[string]float64) ([][]float64, error) {
	X := make([][]float64, 0, len(samples))
	for _, sample := range samples {
		vec, err := space.Vector(sample)
		if err != nil {
			return nil, err
		}
		X = append(X, vec)
	}

	scaler := s.source.Scaler(space.ScalerKey)
	if scaler == nil {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "scaler " + space.ScalerKey + " is not loaded"}
	}
	scaled, err := scaler.Transform(X)
	if err != nil {
		// The schema passed validation, so a width mismatch here means
		// the persisted scaler disagrees with the space definition.
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: err.Error()}
	}
	return scaled, nil
}

// runCandidates attempts inference with every candidate. A model that is
// missing from the registry or errors on this batch is skipped and logged,
// never aborting the request.
func (s *PredictionService) runCandidates(space *models.FeatureSpace, candidates []models.ModelCandidate, X [][]float64) []modelRun {
	var runs []modelRun
	for _, candidate := range candidates {
		entry := s.source.Model(candidate.Key)
		if entry == nil {
			s.logger.WithFields(logrus.Fields{
				"space": space.Name,
				"model": candidate.Key,
			}).Debug("Model not loaded, skipping")
			continue
		}
		probs, err := entry.Model.PredictProba(X)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"space": space.Name,
				"model": candidate.Key,
			}).Warn("Model inference failed, excluding from selection")
			continue
		}
		runs = append(runs, modelRun{candidate: candidate, entry: entry, probs: probs})
	}
	return runs
}

// Confidence folds a probability into [0.5, 1.0]: distance from the 0.5
// decision boundary.
func Confidence(p float64) float64 {
	if p > 0.5 {
		return p
	}
	return 1 - p
}

// RiskLevel is the binary label: "High" strictly above 0.5.
func RiskLevel(p float64) string {
	if p > 0.5 {
		return "High"
	}
	return "Low"
}

// DisplayLevel is the 3-tier label used by the frontend.
func DisplayLevel(p float64) string {
	switch {
	case p < 0.4:
		return "low"
	case p < 0.7:
		return "medium"
	default:
		return "high"
	}
}

// predictWith runs the single-best selection over an explicit candidate
// list: per sample, the strictly highest confidence wins, ties going to
// the earlier candidate.
func (s *PredictionService) predictWith(space *models.FeatureSpace, candidates []models.ModelCandidate, samples []map[string]float64) ([]models.PredictionResult, error) {
	scaled, err := s.scale(space, samples)
	if err != nil {
		return nil, err
	}

	runs := s.runCandidates(space, candidates, scaled)
	if len(runs) == 0 {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "no candidate model produced a prediction"}
	}

	results := make([]models.PredictionResult, len(samples))
	for i := range samples {
		best := -1
		bestConfidence := 0.0
		for r := range runs {
			if c := Confidence(runs[r].probs[i]); c > bestConfidence {
				bestConfidence = c
				best = r
			}
		}

		winner := runs[best]
		p := winner.probs[i]
		results[i] = models.PredictionResult{
			RiskScore:           p,
			RiskLevel:           RiskLevel(p),
			DisplayLevel:        DisplayLevel(p),
			Confidence:          bestConfidence,
			ModelUsed:           fmt.Sprintf("%s (Best of %d models)", winner.candidate.Name, len(runs)),
			ContributingFactors: s.factorsFor(winner.entry, space.Features, p),
		}
	}
	return results, nil
}

// PredictBatch is single-best mode over the space's full candidate list.
func (s *PredictionService) PredictBatch(space *models.FeatureSpace, samples []map[string]float64) ([]models.PredictionResult, error) {
	return s.predictWith(space, space.Candidates, samples)
}

// PredictPrimary restricts selection to the space's primary ensemble,
// used when persisting an examination.
func (s *PredictionService) PredictPrimary(space *models.FeatureSpace, features map[string]float64) (*models.PredictionResult, error) {
	candidates := space.PrimaryCandidates()
	if len(candidates) == 0 {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "primary model " + space.PrimaryModel + " is not a known candidate"}
	}
	results, err := s.predictWith(space, candidates, []map[string]float64{features})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// Compare runs every candidate on a single sample and returns one record
// per model plus the global best and a High/Low consensus count.
func (s *PredictionService) Compare(space *models.FeatureSpace, features map[string]float64) (*models.ComparisonResponse, error) {
	scaled, err := s.scale(space, []map[string]float64{features})
	if err != nil {
		return nil, err
	}

	runs := s.runCandidates(space, space.Candidates, scaled)
	if len(runs) == 0 {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "no candidate model produced a prediction"}
	}

	response := &models.ComparisonResponse{}
	best := -1
	bestConfidence := 0.0
	for r, run := range runs {
		p := run.probs[0]
		comparison := models.ModelComparison{
			ModelKey:   run.candidate.Key,
			ModelName:  run.candidate.Name,
			RiskScore:  p,
			RiskLevel:  RiskLevel(p),
			Confidence: Confidence(p),
			Accuracy:   run.candidate.Accuracy,
			ModelType:  run.candidate.Type,
		}
		response.AllModels = append(response.AllModels, comparison)

		if comparison.Confidence > bestConfidence {
			bestConfidence = comparison.Confidence
			best = r
		}
		if p > 0.5 {
			response.Consensus.HighRiskCount++
		} else {
			response.Consensus.LowRiskCount++
		}
	}
	response.BestModel = response.AllModels[best]
	response.Consensus.TotalModels = len(runs)
	return response, nil
}

// Explain returns per-feature importance weights for a single sample using
// the space's designated explanation model, falling back to the first
// loaded candidate when it is absent.
func (s *PredictionService) Explain(space *models.FeatureSpace, features map[string]float64) (*models.ExplanationResponse, error) {
	scaled, err := s.scale(space, []map[string]float64{features})
	if err != nil {
		return nil, err
	}

	entry := s.source.Model(space.ExplainModel)
	if entry == nil {
		for _, candidate := range space.Candidates {
			if entry = s.source.Model(candidate.Key); entry != nil {
				break
			}
		}
	}
	if entry == nil {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "no model loaded for explanation"}
	}

	probs, err := entry.Model.PredictProba(scaled)
	if err != nil {
		return nil, &models.ModelUnavailableError{Space: space.Name, Reason: "explanation model failed: " + err.Error()}
	}

	return &models.ExplanationResponse{
		ModelKey: entry.Key,
		Method:   entry.Capability,
		Factors:  s.factorsFor(entry, space.Features, probs[0]),
	}, nil
}

// factorsFor dispatches on the artifact's capability tag. Tree ensembles
// contribute importances scaled by the predicted probability, linear
// models their absolute coefficients normalized by the maximum, and
// everything else a uniform weight.
func (s *PredictionService) factorsFor(entry *registry.ModelEntry, features []string, prob float64) map[string]float64 {
	factors := make(map[string]float64, len(features))

	switch entry.Capability {
	case registry.CapabilityTree:
		if importer, ok := entry.Model.(learn.FeatureImporter); ok {
			importances := importer.FeatureImportances()
			if len(importances) == len(features) {
				for j, name := range features {
					factors[name] = importances[j] * prob
				}
				return factors
			}
		}
	case registry.CapabilityLinear:
		if linear, ok := entry.Model.(learn.LinearModel); ok {
			coefs := linear.Coefficients()
			if len(coefs) == len(features) {
				maxAbs := 0.0
				for _, c := range coefs {
					if a := abs(c); a > maxAbs {
						maxAbs = a
					}
				}
				if maxAbs > 0 {
					for j, name := range features {
						factors[name] = abs(coefs[j]) / maxAbs
					}
					return factors
				}
			}
		}
	}

	uniform := 1.0 / float64(len(features))
	for _, name := range features {
		factors[name] = uniform
	}
	return factors
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
