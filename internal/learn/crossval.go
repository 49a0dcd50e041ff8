package learn

import (
	"fmt"
	"math/rand"
)

// Accuracy scores probability outputs against labels at the 0.5 boundary.
func Accuracy(probs []float64, y []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	var correct int
	for i, p := range probs {
		pred := 0
		if p > 0.5 {
			pred = 1
		}
		if pred == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(probs))
}

// CrossValAccuracy reports mean k-fold accuracy for a model built by
// factory. The shuffle is seeded so reruns report the same number.
func CrossValAccuracy(factory func() Trainable, X [][]float64, y []int, k int, seed int64) (float64, error) {
	if len(X) != len(y) {
		return 0, fmt.Errorf("bad data: %d samples, %d labels", len(X), len(y))
	}
	if k < 2 || k > len(X) {
		return 0, fmt.Errorf("invalid fold count %d for %d samples", k, len(X))
	}

	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

	var total float64
	foldSize := len(X) / k
	for fold := 0; fold < k; fold++ {
		start := fold * foldSize
		end := start + foldSize
		if fold == k-1 {
			end = len(X)
		}

		var trainX, testX [][]float64
		var trainY, testY []int
		for pos, i := range idx {
			if pos >= start && pos < end {
				testX = append(testX, X[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}

		model := factory()
		if err := model.Fit(trainX, trainY); err != nil {
			return 0, fmt.Errorf("fold %d: %w", fold, err)
		}
		probs, err := model.PredictProba(testX)
		if err != nil {
			return 0, fmt.Errorf("fold %d: %w", fold, err)
		}
		total += Accuracy(probs, testY)
	}
	return total / float64(k), nil
}
