package learn

import (
	"fmt"
	"math/rand"
	"sort"
)

// DecisionTree is a CART tree stored as flat node arrays so it serializes
// directly to JSON. Leaves carry the mean target of their samples; on 0/1
// labels that is the positive-class fraction, and variance reduction
// orders splits identically to gini.
type DecisionTree struct {
	MaxDepth int `json:"max_depth"`
	MinLeaf  int `json:"min_leaf"`

	Feature   []int     `json:"feature"` // -1 marks a leaf
	Threshold []float64 `json:"threshold"`
	Left      []int     `json:"left"`
	Right     []int     `json:"right"`
	Value     []float64 `json:"value"`

	Importances []float64 `json:"importances"`
}

func NewDecisionTree() *DecisionTree {
	return &DecisionTree{MaxDepth: 6, MinLeaf: 2}
}

func (t *DecisionTree) Fit(X [][]float64, y []int) error {
	targets := make([]float64, len(y))
	for i, v := range y {
		targets[i] = float64(v)
	}
	return t.FitTargets(X, targets, 0, nil)
}

// FitTargets fits on float targets, used directly by gradient boosting for
// residual trees. maxFeatures 0 means all features; a positive value
// samples that many candidate features per split using rng.
func (t *DecisionTree) FitTargets(X [][]float64, targets []float64, maxFeatures int, rng *rand.Rand) error {
	if len(X) == 0 || len(X) != len(targets) {
		return fmt.Errorf("bad training data: %d samples, %d targets", len(X), len(targets))
	}
	cols := len(X[0])
	t.Feature = t.Feature[:0]
	t.Threshold = t.Threshold[:0]
	t.Left = t.Left[:0]
	t.Right = t.Right[:0]
	t.Value = t.Value[:0]
	t.Importances = make([]float64, cols)

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.build(X, targets, idx, 0, maxFeatures, rng)

	var total float64
	for _, v := range t.Importances {
		total += v
	}
	if total > 0 {
		for j := range t.Importances {
			t.Importances[j] /= total
		}
	}
	return nil
}

func (t *DecisionTree) addNode(feature int, threshold, value float64) int {
	t.Feature = append(t.Feature, feature)
	t.Threshold = append(t.Threshold, threshold)
	t.Left = append(t.Left, -1)
	t.Right = append(t.Right, -1)
	t.Value = append(t.Value, value)
	return len(t.Feature) - 1
}

func (t *DecisionTree) build(X [][]float64, targets []float64, idx []int, depth, maxFeatures int, rng *rand.Rand) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += targets[i]
		sumSq += targets[i] * targets[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumSq - sum*sum/n

	node := t.addNode(-1, 0, mean)
	if depth >= t.MaxDepth || len(idx) < 2*t.MinLeaf || sse <= 1e-12 {
		return node
	}

	feature, threshold, gain := t.bestSplit(X, targets, idx, sse, maxFeatures, rng)
	if feature < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < t.MinLeaf || len(right) < t.MinLeaf {
		return node
	}

	t.Importances[feature] += gain
	t.Feature[node] = feature
	t.Threshold[node] = threshold
	t.Left[node] = t.build(X, targets, left, depth+1, maxFeatures, rng)
	t.Right[node] = t.build(X, targets, right, depth+1, maxFeatures, rng)
	return node
}

// bestSplit scans candidate features sorted by value, evaluating every
// midpoint with prefix sums. Returns the SSE decrease as the gain.
func (t *DecisionTree) bestSplit(X [][]float64, targets []float64, idx []int, parentSSE float64, maxFeatures int, rng *rand.Rand) (int, float64, float64) {
	cols := len(X[0])
	features := make([]int, cols)
	for j := range features {
		features[j] = j
	}
	if maxFeatures > 0 && maxFeatures < cols && rng != nil {
		rng.Shuffle(cols, func(a, b int) { features[a], features[b] = features[b], features[a] })
		features = features[:maxFeatures]
	}

	bestFeature := -1
	var bestThreshold, bestGain float64

	type pair struct{ v, t float64 }
	pairs := make([]pair, len(idx))
	for _, j := range features {
		for k, i := range idx {
			pairs[k] = pair{X[i][j], targets[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var totalSum, totalSq float64
		for _, p := range pairs {
			totalSum += p.t
			totalSq += p.t * p.t
		}

		var leftSum, leftSq float64
		for k := 0; k < len(pairs)-1; k++ {
			leftSum += pairs[k].t
			leftSq += pairs[k].t * pairs[k].t
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			nl := float64(k + 1)
			nr := float64(len(pairs) - k - 1)
			if int(nl) < t.MinLeaf || int(nr) < t.MinLeaf {
				continue
			}
			leftSSE := leftSq - leftSum*leftSum/nl
			rightSum := totalSum - leftSum
			rightSSE := (totalSq - leftSq) - rightSum*rightSum/nr
			gain := parentSSE - leftSSE - rightSSE
			if gain > bestGain {
				bestGain = gain
				bestFeature = j
				bestThreshold = (pairs[k].v + pairs[k+1].v) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (t *DecisionTree) predictOne(row []float64) float64 {
	node := 0
	for t.Feature[node] >= 0 {
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return t.Value[node]
}

func (t *DecisionTree) PredictProba(X [][]float64) ([]float64, error) {
	if len(t.Feature) == 0 {
		return nil, fmt.Errorf("decision tree is not fitted")
	}
	probs := make([]float64, len(X))
	for i, row := range X {
		p := t.predictOne(row)
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
		probs[i] = p
	}
	return probs, nil
}

// PredictRaw returns unclamped leaf values, used for residual trees.
func (t *DecisionTree) PredictRaw(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.predictOne(row)
	}
	return out
}

func (t *DecisionTree) FeatureImportances() []float64 {
	return t.Importances
}
