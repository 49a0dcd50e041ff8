package learn

import (
	"encoding/json"
	"fmt"
)

// StackingEnsemble feeds base-model probabilities into a logistic
// regression meta-learner. Base models are embedded in the serialized
// artifact with their type tags so the ensemble round-trips as one file.
type StackingEnsemble struct {
	Bases []Classifier
	Meta  *LogisticRegression
}

type stackedJSON struct {
	Bases []stackedBase       `json:"bases"`
	Meta  *LogisticRegression `json:"meta"`
}

type stackedBase struct {
	Type  string          `json:"type"`
	Model json.RawMessage `json:"model"`
}

func NewStackingEnsemble(bases []Classifier) *StackingEnsemble {
	return &StackingEnsemble{Bases: bases}
}

func (se *StackingEnsemble) MarshalJSON() ([]byte, error) {
	out := stackedJSON{Meta: se.Meta}
	for _, base := range se.Bases {
		tag := TypeOf(base)
		if tag == "" {
			return nil, fmt.Errorf("cannot serialize base model of type %T", base)
		}
		raw, err := json.Marshal(base)
		if err != nil {
			return nil, err
		}
		out.Bases = append(out.Bases, stackedBase{Type: tag, Model: raw})
	}
	return json.Marshal(out)
}

func (se *StackingEnsemble) UnmarshalJSON(data []byte) error {
	var in stackedJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	se.Meta = in.Meta
	se.Bases = nil
	for _, base := range in.Bases {
		model, err := NewByType(base.Type)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(base.Model, model); err != nil {
			return fmt.Errorf("base %s: %w", base.Type, err)
		}
		se.Bases = append(se.Bases, model)
	}
	return nil
}

// baseFeatures builds the meta-learner's input: one probability column per
// base model.
func (se *StackingEnsemble) baseFeatures(X [][]float64) ([][]float64, error) {
	meta := make([][]float64, len(X))
	for i := range meta {
		meta[i] = make([]float64, len(se.Bases))
	}
	for b, base := range se.Bases {
		probs, err := base.PredictProba(X)
		if err != nil {
			return nil, fmt.Errorf("base %d: %w", b, err)
		}
		for i, p := range probs {
			meta[i][b] = p
		}
	}
	return meta, nil
}

// FitMeta fits only the meta-learner on already-trained base models. The
// retrainer uses this after fitting the bases fresh.
func (se *StackingEnsemble) FitMeta(X [][]float64, y []int) error {
	if len(se.Bases) == 0 {
		return fmt.Errorf("stacking ensemble has no base models")
	}
	meta, err := se.baseFeatures(X)
	if err != nil {
		return err
	}
	se.Meta = NewLogisticRegression()
	return se.Meta.Fit(meta, y)
}

// Fit trains every trainable base and then the meta-learner.
func (se *StackingEnsemble) Fit(X [][]float64, y []int) error {
	for i, base := range se.Bases {
		trainable, ok := base.(Trainable)
		if !ok {
			return fmt.Errorf("base %d is not trainable", i)
		}
		if err := trainable.Fit(X, y); err != nil {
			return fmt.Errorf("base %d: %w", i, err)
		}
	}
	return se.FitMeta(X, y)
}

func (se *StackingEnsemble) PredictProba(X [][]float64) ([]float64, error) {
	if se.Meta == nil || len(se.Bases) == 0 {
		return nil, fmt.Errorf("stacking ensemble is not fitted")
	}
	meta, err := se.baseFeatures(X)
	if err != nil {
		return nil, err
	}
	return se.Meta.PredictProba(meta)
}
