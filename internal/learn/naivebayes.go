package learn

import (
	"fmt"
	"math"
)

const varianceFloor = 1e-9

// GaussianNB is a gaussian naive bayes binary classifier. Index 0 holds the
// negative-class statistics, index 1 the positive class.
type GaussianNB struct {
	Priors    [2]float64   `json:"priors"`
	Means     [2][]float64 `json:"means"`
	Variances [2][]float64 `json:"variances"`
}

func NewGaussianNB() *GaussianNB {
	return &GaussianNB{}
}

func (nb *GaussianNB) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("bad training data: %d samples, %d labels", len(X), len(y))
	}
	cols := len(X[0])
	var counts [2]float64
	for c := 0; c < 2; c++ {
		nb.Means[c] = make([]float64, cols)
		nb.Variances[c] = make([]float64, cols)
	}

	for i, row := range X {
		c := y[i]
		if c != 0 && c != 1 {
			return fmt.Errorf("label must be 0 or 1, got %d", c)
		}
		counts[c]++
		for j, v := range row {
			nb.Means[c][j] += v
		}
	}
	for c := 0; c < 2; c++ {
		if counts[c] == 0 {
			return fmt.Errorf("class %d has no samples", c)
		}
		for j := range nb.Means[c] {
			nb.Means[c][j] /= counts[c]
		}
		nb.Priors[c] = counts[c] / float64(len(X))
	}

	for i, row := range X {
		c := y[i]
		for j, v := range row {
			d := v - nb.Means[c][j]
			nb.Variances[c][j] += d * d
		}
	}
	for c := 0; c < 2; c++ {
		for j := range nb.Variances[c] {
			nb.Variances[c][j] = nb.Variances[c][j]/counts[c] + varianceFloor
		}
	}
	return nil
}

func (nb *GaussianNB) PredictProba(X [][]float64) ([]float64, error) {
	if nb.Means[0] == nil {
		return nil, fmt.Errorf("naive bayes is not fitted")
	}
	probs := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(nb.Means[0]) {
			return nil, fmt.Errorf("expected %d features, got %d", len(nb.Means[0]), len(row))
		}
		var logp [2]float64
		for c := 0; c < 2; c++ {
			lp := math.Log(nb.Priors[c])
			for j, v := range row {
				variance := nb.Variances[c][j]
				d := v - nb.Means[c][j]
				lp += -0.5*math.Log(2*math.Pi*variance) - d*d/(2*variance)
			}
			logp[c] = lp
		}
		// Normalize in log space to avoid underflow.
		m := math.Max(logp[0], logp[1])
		p0 := math.Exp(logp[0] - m)
		p1 := math.Exp(logp[1] - m)
		probs[i] = p1 / (p0 + p1)
	}
	return probs, nil
}
