package models

// Static offline evaluation metrics, computed by the training pipeline on
// held-out test sets. Served as-is from the admin endpoints; never
// recomputed at serve time.

type ConfusionMatrix struct {
	TrueNegative  int `json:"true_negative"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
	TruePositive  int `json:"true_positive"`
}

type ModelMetrics struct {
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Space     string          `json:"space"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	AUC       float64         `json:"auc"`
	Confusion ConfusionMatrix `json:"confusion_matrix"`
}

var OfflineMetrics = []ModelMetrics{
	{
		Key: "cardio_stacking", Name: "Stacking Ensemble", Space: "lifestyle",
		Accuracy: 88.2, Precision: 87.4, Recall: 88.9, F1: 88.1, AUC: 0.941,
		Confusion: ConfusionMatrix{TrueNegative: 6118, FalsePositive: 882, FalseNegative: 770, TruePositive: 6230},
	},
	{
		Key: "cardio_rf", Name: "Random Forest", Space: "lifestyle",
		Accuracy: 86.5, Precision: 85.9, Recall: 87.0, F1: 86.4, AUC: 0.928,
		Confusion: ConfusionMatrix{TrueNegative: 6003, FalsePositive: 997, FalseNegative: 893, TruePositive: 6107},
	},
	{
		Key: "cardio_gb", Name: "Gradient Boosting", Space: "lifestyle",
		Accuracy: 87.3, Precision: 86.6, Recall: 87.8, F1: 87.2, AUC: 0.934,
		Confusion: ConfusionMatrix{TrueNegative: 6051, FalsePositive: 949, FalseNegative: 829, TruePositive: 6171},
	},
	{
		Key: "cardio_lr", Name: "Logistic Regression", Space: "lifestyle",
		Accuracy: 82.1, Precision: 81.3, Recall: 82.7, F1: 82.0, AUC: 0.897,
		Confusion: ConfusionMatrix{TrueNegative: 5672, FalsePositive: 1328, FalseNegative: 1178, TruePositive: 5822},
	},
	{
		Key: "heart_stacking", Name: "Stacking Ensemble", Space: "clinical",
		Accuracy: 91.2, Precision: 90.5, Recall: 92.1, F1: 91.3, AUC: 0.962,
		Confusion: ConfusionMatrix{TrueNegative: 134, FalsePositive: 14, FalseNegative: 12, TruePositive: 140},
	},
	{
		Key: "heart_rf", Name: "Random Forest", Space: "clinical",
		Accuracy: 89.5, Precision: 88.8, Recall: 90.3, F1: 89.5, AUC: 0.951,
		Confusion: ConfusionMatrix{TrueNegative: 131, FalsePositive: 17, FalseNegative: 15, TruePositive: 137},
	},
	{
		Key: "heart_gb", Name: "Gradient Boosting", Space: "clinical",
		Accuracy: 90.1, Precision: 89.2, Recall: 91.0, F1: 90.1, AUC: 0.955,
		Confusion: ConfusionMatrix{TrueNegative: 132, FalsePositive: 16, FalseNegative: 14, TruePositive: 138},
	},
	{
		Key: "heart_nb", Name: "Naive Bayes", Space: "clinical",
		Accuracy: 85.3, Precision: 84.1, Recall: 86.5, F1: 85.3, AUC: 0.922,
		Confusion: ConfusionMatrix{TrueNegative: 125, FalsePositive: 23, FalseNegative: 21, TruePositive: 131},
	},
}

// MetricsByKey looks up one model's offline metrics.
func MetricsByKey(key string) (*ModelMetrics, bool) {
	for i := range OfflineMetrics {
		if OfflineMetrics[i].Key == key {
			return &OfflineMetrics[i], true
		}
	}
	return nil, false
}
