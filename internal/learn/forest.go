package learn

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest averages bootstrap-trained trees with sqrt feature
// subsampling per split. Seeded so fits are reproducible.
type RandomForest struct {
	NumTrees int   `json:"num_trees"`
	MaxDepth int   `json:"max_depth"`
	MinLeaf  int   `json:"min_leaf"`
	Seed     int64 `json:"seed"`

	Trees []*DecisionTree `json:"trees"`
}

func NewRandomForest() *RandomForest {
	return &RandomForest{NumTrees: 100, MaxDepth: 8, MinLeaf: 2, Seed: 42}
}

func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("bad training data: %d samples, %d labels", len(X), len(y))
	}
	targets := make([]float64, len(y))
	for i, v := range y {
		targets[i] = float64(v)
	}
	cols := len(X[0])
	maxFeatures := int(math.Sqrt(float64(cols)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(rf.Seed))
	rf.Trees = make([]*DecisionTree, rf.NumTrees)
	bootX := make([][]float64, len(X))
	bootT := make([]float64, len(X))
	for i := 0; i < rf.NumTrees; i++ {
		for k := range bootX {
			pick := rng.Intn(len(X))
			bootX[k] = X[pick]
			bootT[k] = targets[pick]
		}
		tree := &DecisionTree{MaxDepth: rf.MaxDepth, MinLeaf: rf.MinLeaf}
		if err := tree.FitTargets(bootX, bootT, maxFeatures, rng); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		rf.Trees[i] = tree
	}
	return nil
}

func (rf *RandomForest) PredictProba(X [][]float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("random forest is not fitted")
	}
	probs := make([]float64, len(X))
	for _, tree := range rf.Trees {
		treeProbs, err := tree.PredictProba(X)
		if err != nil {
			return nil, err
		}
		for i, p := range treeProbs {
			probs[i] += p
		}
	}
	for i := range probs {
		probs[i] /= float64(len(rf.Trees))
	}
	return probs, nil
}

// FeatureImportances averages per-tree importances and renormalizes.
func (rf *RandomForest) FeatureImportances() []float64 {
	if len(rf.Trees) == 0 {
		return nil
	}
	out := make([]float64, len(rf.Trees[0].Importances))
	for _, tree := range rf.Trees {
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
