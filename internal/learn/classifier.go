// Package learn implements the native model math behind the prediction
// service: a standard scaler, four binary classifiers, a stacking ensemble,
// and k-fold cross-validation. All models serialize to JSON through
// exported fields so trained artifacts round-trip through the registry.
package learn

import "fmt"

// Model type tags, stored alongside serialized artifacts.
const (
	TypeLogistic   = "logistic_regression"
	TypeNaiveBayes = "gaussian_nb"
	TypeTree       = "decision_tree"
	TypeForest     = "random_forest"
	TypeBoosting   = "gradient_boosting"
	TypeStacking   = "stacking"
)

// Classifier is the serving contract: for a batch of scaled feature
// vectors, the positive-class probability per sample, each in [0,1].
type Classifier interface {
	PredictProba(X [][]float64) ([]float64, error)
}

// Trainable is a classifier that can be fit from scratch on labeled data.
type Trainable interface {
	Classifier
	Fit(X [][]float64, y []int) error
}

// FeatureImporter is implemented by the tree ensembles. Importances are
// non-negative and sum to 1 when any split was made.
type FeatureImporter interface {
	FeatureImportances() []float64
}

// LinearModel exposes per-feature coefficients for explanation.
type LinearModel interface {
	Coefficients() []float64
}

// NewByType constructs an untrained model for a type tag, used when
// deserializing artifacts and when rebuilding stacked bases.
func NewByType(modelType string) (Trainable, error) {
	switch modelType {
	case TypeLogistic:
		return NewLogisticRegression(), nil
	case TypeNaiveBayes:
		return NewGaussianNB(), nil
	case TypeTree:
		return NewDecisionTree(), nil
	case TypeForest:
		return NewRandomForest(), nil
	case TypeBoosting:
		return NewGradientBoosting(), nil
	case TypeStacking:
		return NewStackingEnsemble(nil), nil
	default:
		return nil, fmt.Errorf("unknown model type: %s", modelType)
	}
}

// TypeOf reports the type tag for a model instance.
func TypeOf(c Classifier) string {
	switch c.(type) {
	case *LogisticRegression:
		return TypeLogistic
	case *GaussianNB:
		return TypeNaiveBayes
	case *DecisionTree:
		return TypeTree
	case *RandomForest:
		return TypeForest
	case *GradientBoosting:
		return TypeBoosting
	case *StackingEnsemble:
		return TypeStacking
	default:
		return ""
	}
}
