package learn

import (
	"fmt"
	"math"
)

// GradientBoosting fits shallow regression trees to the gradient of the
// logistic loss. The initial score is the training-set log-odds.
type GradientBoosting struct {
	NumTrees     int     `json:"num_trees"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	InitScore    float64 `json:"init_score"`

	Trees []*DecisionTree `json:"trees"`
}

func NewGradientBoosting() *GradientBoosting {
	return &GradientBoosting{NumTrees: 100, MaxDepth: 3, LearningRate: 0.1}
}

func (gb *GradientBoosting) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("bad training data: %d samples, %d labels", len(X), len(y))
	}

	var positives float64
	for _, v := range y {
		positives += float64(v)
	}
	// Clamp away from pure classes so the log-odds stay finite.
	p := positives / float64(len(y))
	if p < 1e-6 {
		p = 1e-6
	} else if p > 1-1e-6 {
		p = 1 - 1e-6
	}
	gb.InitScore = math.Log(p / (1 - p))

	scores := make([]float64, len(X))
	for i := range scores {
		scores[i] = gb.InitScore
	}

	residuals := make([]float64, len(X))
	gb.Trees = make([]*DecisionTree, 0, gb.NumTrees)
	for t := 0; t < gb.NumTrees; t++ {
		for i := range residuals {
			residuals[i] = float64(y[i]) - sigmoid(scores[i])
		}
		tree := &DecisionTree{MaxDepth: gb.MaxDepth, MinLeaf: 2}
		if err := tree.FitTargets(X, residuals, 0, nil); err != nil {
			return fmt.Errorf("tree %d: %w", t, err)
		}
		gb.Trees = append(gb.Trees, tree)
		for i, step := range tree.PredictRaw(X) {
			scores[i] += gb.LearningRate * step
		}
	}
	return nil
}

func (gb *GradientBoosting) PredictProba(X [][]float64) ([]float64, error) {
	if len(gb.Trees) == 0 {
		return nil, fmt.Errorf("gradient boosting is not fitted")
	}
	probs := make([]float64, len(X))
	scores := make([]float64, len(X))
	for i := range scores {
		scores[i] = gb.InitScore
	}
	for _, tree := range gb.Trees {
		for i, step := range tree.PredictRaw(X) {
			scores[i] += gb.LearningRate * step
		}
	}
	for i, s := range scores {
		probs[i] = sigmoid(s)
	}
	return probs, nil
}

func (gb *GradientBoosting) FeatureImportances() []float64 {
	if len(gb.Trees) == 0 {
		return nil
	}
	out := make([]float64, len(gb.Trees[0].Importances))
	for _, tree := range gb.Trees {
		for j, v := range tree.Importances {
			out[j] += v
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
