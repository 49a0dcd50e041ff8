package models

type PredictRequest struct {
	Samples []map[string]float64 `json:"samples" binding:"required"`
}

type SingleSampleRequest struct {
	Features map[string]float64 `json:"features" binding:"required"`
}

type PredictionResult struct {
	RiskScore           float64            `json:"risk_score"`
	RiskLevel           string             `json:"risk_level"`
	DisplayLevel        string             `json:"display_level"`
	Confidence          float64            `json:"confidence"`
	ModelUsed           string             `json:"model_used"`
	ContributingFactors map[string]float64 `json:"contributing_factors,omitempty"`
}

type ModelComparison struct {
	ModelKey   string  `json:"model_key"`
	ModelName  string  `json:"model_name"`
	RiskScore  float64 `json:"risk_score"`
	RiskLevel  string  `json:"risk_level"`
	Confidence float64 `json:"confidence"`
	Accuracy   float64 `json:"accuracy"`
	ModelType  string  `json:"model_type"`
}

type Consensus struct {
	HighRiskCount int `json:"high_risk_count"`
	LowRiskCount  int `json:"low_risk_count"`
	TotalModels   int `json:"total_models"`
}

type ComparisonResponse struct {
	AllModels []ModelComparison `json:"all_models"`
	BestModel ModelComparison   `json:"best_model"`
	Consensus Consensus         `json:"consensus"`
}

type ExplanationResponse struct {
	ModelKey string             `json:"model_key"`
	Method   string             `json:"method"`
	Factors  map[string]float64 `json:"contributing_factors"`
}

type CreateExaminationRequest struct {
	PatientID string             `json:"patient_id" binding:"required"`
	ExamDate  string             `json:"exam_date"`
	Features  map[string]float64 `json:"features" binding:"required"`
}

// Diagnosis uses a pointer so that 0 (no disease) survives binding.
type DiagnosisRequest struct {
	Diagnosis *int `json:"diagnosis" binding:"required"`
}

type MarkTrainedRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

type MarkTrainedResponse struct {
	Updated int64 `json:"updated"`
}

type TrainingExportResponse struct {
	Space   string               `json:"space"`
	Columns []string             `json:"columns"`
	Rows    []map[string]float64 `json:"rows"`
}

type CombinedTrainingStats struct {
	Lifestyle *TrainingStats `json:"lifestyle"`
	Clinical  *TrainingStats `json:"clinical"`
	Total     *TrainingStats `json:"total"`
}

type RetrainModelResult struct {
	ModelKey   string  `json:"model_key"`
	Status     string  `json:"status"`
	CVAccuracy float64 `json:"cv_accuracy,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type RetrainReport struct {
	Space         string               `json:"space"`
	Samples       int                  `json:"samples"`
	Skipped       bool                 `json:"skipped"`
	Reason        string               `json:"reason,omitempty"`
	Models        []RetrainModelResult `json:"models,omitempty"`
	MarkedTrained int64                `json:"marked_trained"`
}

type ModelStatus struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Space     string `json:"space"`
	Loaded    bool   `json:"loaded"`
	TrainedAt string `json:"trained_at,omitempty"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
