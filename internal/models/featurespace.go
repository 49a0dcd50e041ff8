package models

// Feature space definitions

// ModelCandidate is one entry in a space's fixed candidate list. Accuracy and
// ModelType are static offline metadata, never recomputed at serve time.
type ModelCandidate struct {
	Key      string
	Name     string
	Accuracy float64
	Type     string
}

// FeatureSpace describes one prediction domain: its feature schema (order
// fixed, matching the fitted scaler), its scaler key, and its candidate
// model list in selection-priority order.
type FeatureSpace struct {
	Name         string
	ScalerKey    string
	Features     []string
	Candidates   []ModelCandidate
	PrimaryModel string
	ExplainModel string
}

var LifestyleSpace = FeatureSpace{
	Name:      "lifestyle",
	ScalerKey: "cardio",
	Features: []string{
		"gender", "age_bin", "bmi_class", "map_class", "cholesterol",
		"gluc", "smoke", "alco", "active", "history",
	},
	Candidates: []ModelCandidate{
		{Key: "cardio_stacking", Name: "Stacking Ensemble", Accuracy: 88.2, Type: "ensemble"},
		{Key: "cardio_rf", Name: "Random Forest", Accuracy: 86.5, Type: "single"},
		{Key: "cardio_gb", Name: "Gradient Boosting", Accuracy: 87.3, Type: "single"},
		{Key: "cardio_lr", Name: "Logistic Regression", Accuracy: 82.1, Type: "single"},
	},
	PrimaryModel: "cardio_stacking",
	ExplainModel: "cardio_rf",
}

var ClinicalSpace = FeatureSpace{
	Name:      "clinical",
	ScalerKey: "heart",
	Features: []string{
		"sex", "age_bin", "cp", "bp_class", "chol_class", "fbs", "restecg",
		"thalach_class", "exang", "oldpeak_class", "slope", "ca", "thal",
	},
	Candidates: []ModelCandidate{
		{Key: "heart_stacking", Name: "Stacking Ensemble", Accuracy: 91.2, Type: "ensemble"},
		{Key: "heart_rf", Name: "Random Forest", Accuracy: 89.5, Type: "single"},
		{Key: "heart_gb", Name: "Gradient Boosting", Accuracy: 90.1, Type: "single"},
		{Key: "heart_nb", Name: "Naive Bayes", Accuracy: 85.3, Type: "single"},
	},
	PrimaryModel: "heart_stacking",
	ExplainModel: "heart_rf",
}

// SpaceByName resolves a feature space from its URL name.
func SpaceByName(name string) (*FeatureSpace, bool) {
	switch name {
	case "lifestyle":
		return &LifestyleSpace, true
	case "clinical":
		return &ClinicalSpace, true
	default:
		return nil, false
	}
}

// AllSpaces lists the spaces in a fixed order.
func AllSpaces() []*FeatureSpace {
	return []*FeatureSpace{&LifestyleSpace, &ClinicalSpace}
}

// Vector orders a named feature map into the space's fixed column order.
// Missing or unexpected keys fail with FeatureMismatchError before any
// scaling can produce garbage.
func (fs *FeatureSpace) Vector(features map[string]float64) ([]float64, error) {
	var missing []string
	vec := make([]float64, 0, len(fs.Features))
	for _, name := range fs.Features {
		v, ok := features[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		vec = append(vec, v)
	}

	var extra []string
	if len(features) != len(fs.Features)-len(missing) {
		known := make(map[string]bool, len(fs.Features))
		for _, name := range fs.Features {
			known[name] = true
		}
		for name := range features {
			if !known[name] {
				extra = append(extra, name)
			}
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		return nil, &FeatureMismatchError{Space: fs.Name, Missing: missing, Extra: extra}
	}
	return vec, nil
}

// Candidate looks up a candidate by model key.
func (fs *FeatureSpace) Candidate(key string) (*ModelCandidate, bool) {
	for i := range fs.Candidates {
		if fs.Candidates[i].Key == key {
			return &fs.Candidates[i], true
		}
	}
	return nil, false
}

// PrimaryCandidates returns the candidate list restricted to the primary
// model, used when persisting an examination's prediction.
func (fs *FeatureSpace) PrimaryCandidates() []ModelCandidate {
	if c, ok := fs.Candidate(fs.PrimaryModel); ok {
		return []ModelCandidate{*c}
	}
	return nil
}
