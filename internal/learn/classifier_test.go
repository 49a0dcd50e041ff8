package learn

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableData returns a 2D dataset where class 1 sits around (2,2) and
// class 0 around (-2,-2), with a little deterministic jitter.
func separableData(n int) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(7))
	X := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		label := i % 2
		center := -2.0
		if label == 1 {
			center = 2.0
		}
		X = append(X, []float64{center + rng.Float64(), center + rng.Float64()})
		y = append(y, label)
	}
	return X, y
}

func TestLogisticRegressionSeparable(t *testing.T) {
	X, y := separableData(100)

	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	probs, err := lr.PredictProba(X)
	require.NoError(t, err)
	assert.Greater(t, Accuracy(probs, y), 0.95)

	coefs := lr.Coefficients()
	require.Len(t, coefs, 2)
	assert.Greater(t, coefs[0], 0.0)
}

func TestGaussianNBSeparable(t *testing.T) {
	X, y := separableData(100)

	nb := NewGaussianNB()
	require.NoError(t, nb.Fit(X, y))

	probs, err := nb.PredictProba(X)
	require.NoError(t, err)
	assert.Greater(t, Accuracy(probs, y), 0.95)
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestGaussianNBSingleClassFails(t *testing.T) {
	nb := NewGaussianNB()
	err := nb.Fit([][]float64{{1}, {2}}, []int{1, 1})
	assert.Error(t, err)
}

func TestDecisionTreeSeparable(t *testing.T) {
	X, y := separableData(100)

	tree := NewDecisionTree()
	require.NoError(t, tree.Fit(X, y))

	probs, err := tree.PredictProba(X)
	require.NoError(t, err)
	assert.Greater(t, Accuracy(probs, y), 0.95)

	importances := tree.FeatureImportances()
	require.Len(t, importances, 2)
	var total float64
	for _, v := range importances {
		assert.GreaterOrEqual(t, v, 0.0)
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := separableData(80)

	first := NewRandomForest()
	first.NumTrees = 10
	require.NoError(t, first.Fit(X, y))

	second := NewRandomForest()
	second.NumTrees = 10
	require.NoError(t, second.Fit(X, y))

	p1, err := first.PredictProba(X)
	require.NoError(t, err)
	p2, err := second.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Greater(t, Accuracy(p1, y), 0.95)
}

func TestGradientBoostingSeparable(t *testing.T) {
	X, y := separableData(100)

	gb := NewGradientBoosting()
	gb.NumTrees = 30
	require.NoError(t, gb.Fit(X, y))

	probs, err := gb.PredictProba(X)
	require.NoError(t, err)
	assert.Greater(t, Accuracy(probs, y), 0.95)
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestStackingEnsembleFitAndRoundTrip(t *testing.T) {
	X, y := separableData(100)

	rf := NewRandomForest()
	rf.NumTrees = 10
	se := NewStackingEnsemble([]Classifier{rf, NewLogisticRegression()})
	require.NoError(t, se.Fit(X, y))

	probs, err := se.PredictProba(X)
	require.NoError(t, err)
	assert.Greater(t, Accuracy(probs, y), 0.95)

	raw, err := json.Marshal(se)
	require.NoError(t, err)

	restored := &StackingEnsemble{}
	require.NoError(t, json.Unmarshal(raw, restored))
	require.Len(t, restored.Bases, 2)

	restoredProbs, err := restored.PredictProba(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, probs, restoredProbs, 1e-12)
}

func TestUnfittedModelsError(t *testing.T) {
	X := [][]float64{{1, 2}}

	_, err := NewLogisticRegression().PredictProba(X)
	assert.Error(t, err)
	_, err = NewGaussianNB().PredictProba(X)
	assert.Error(t, err)
	_, err = NewDecisionTree().PredictProba(X)
	assert.Error(t, err)
	_, err = NewRandomForest().PredictProba(X)
	assert.Error(t, err)
	_, err = NewGradientBoosting().PredictProba(X)
	assert.Error(t, err)
	_, err = NewStackingEnsemble(nil).PredictProba(X)
	assert.Error(t, err)
}

func TestNewByTypeCoversAllTags(t *testing.T) {
	tags := []string{TypeLogistic, TypeNaiveBayes, TypeTree, TypeForest, TypeBoosting, TypeStacking}
	for _, tag := range tags {
		model, err := NewByType(tag)
		require.NoError(t, err, tag)
		assert.Equal(t, tag, TypeOf(model), tag)
	}

	_, err := NewByType("svm")
	assert.Error(t, err)
}
