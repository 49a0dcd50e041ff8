package learn

import (
	"fmt"
	"math"
)

// LogisticRegression is a binary classifier fit with full-batch gradient
// descent. Deterministic: no shuffling, fixed epoch count.
type LogisticRegression struct {
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	LearningRate float64   `json:"learning_rate"`
	Epochs       int       `json:"epochs"`
	L2           float64   `json:"l2"`
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.1,
		Epochs:       500,
		L2:           1e-4,
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("bad training data: %d samples, %d labels", len(X), len(y))
	}
	cols := len(X[0])
	lr.Weights = make([]float64, cols)
	lr.Bias = 0

	n := float64(len(X))
	grad := make([]float64, cols)
	for epoch := 0; epoch < lr.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradB float64
		for i, row := range X {
			z := lr.Bias
			for j, v := range row {
				z += lr.Weights[j] * v
			}
			err := sigmoid(z) - float64(y[i])
			for j, v := range row {
				grad[j] += err * v
			}
			gradB += err
		}
		for j := range lr.Weights {
			lr.Weights[j] -= lr.LearningRate * (grad[j]/n + lr.L2*lr.Weights[j])
		}
		lr.Bias -= lr.LearningRate * gradB / n
	}
	return nil
}

func (lr *LogisticRegression) PredictProba(X [][]float64) ([]float64, error) {
	if lr.Weights == nil {
		return nil, fmt.Errorf("logistic regression is not fitted")
	}
	probs := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(lr.Weights) {
			return nil, fmt.Errorf("expected %d features, got %d", len(lr.Weights), len(row))
		}
		z := lr.Bias
		for j, v := range row {
			z += lr.Weights[j] * v
		}
		probs[i] = sigmoid(z)
	}
	return probs, nil
}

// Coefficients returns the fitted weights for explanation.
func (lr *LogisticRegression) Coefficients() []float64 {
	return lr.Weights
}
