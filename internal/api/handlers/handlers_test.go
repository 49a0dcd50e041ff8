package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu-dev/cardiopredict/internal/learn"
	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/registry"
	"github.com/minhvu-dev/cardiopredict/internal/repository"
	"github.com/minhvu-dev/cardiopredict/internal/services"
	"github.com/minhvu-dev/cardiopredict/pkg/utils"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// fixedModel always reports the same probability.
type fixedModel struct {
	p float64
}

func (m fixedModel) PredictProba(X [][]float64) ([]float64, error) {
	probs := make([]float64, len(X))
	for i := range probs {
		probs[i] = m.p
	}
	return probs, nil
}

// stubSource serves canned models without touching the filesystem.
type stubSource struct {
	models  map[string]*registry.ModelEntry
	scalers map[string]*learn.StandardScaler
}

func (s *stubSource) Model(key string) *registry.ModelEntry   { return s.models[key] }
func (s *stubSource) Scaler(key string) *learn.StandardScaler { return s.scalers[key] }

func identityScaler(n int) *learn.StandardScaler {
	mean := make([]float64, n)
	std := make([]float64, n)
	for i := range std {
		std[i] = 1
	}
	return &learn.StandardScaler{Mean: mean, Std: std}
}

func newStubPredictor(primaryProb float64) *services.PredictionService {
	source := &stubSource{
		models: map[string]*registry.ModelEntry{
			"cardio_stacking": {
				Key:        "cardio_stacking",
				ModelType:  learn.TypeStacking,
				Capability: registry.CapabilityProba,
				Model:      fixedModel{p: primaryProb},
			},
		},
		scalers: map[string]*learn.StandardScaler{
			"cardio": identityScaler(len(models.LifestyleSpace.Features)),
		},
	}
	return services.NewPredictionService(source, testLogger())
}

func lifestyleSampleJSON() string {
	sample := make(map[string]float64, len(models.LifestyleSpace.Features))
	for _, f := range models.LifestyleSpace.Features {
		sample[f] = 1
	}
	encoded, _ := json.Marshal(sample)
	return string(encoded)
}

// In-memory repositories shared by patient and examination handler tests.

type fakePatientRepo struct {
	patients map[string]models.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[string]models.Patient)}
}

func (r *fakePatientRepo) Create(p *models.Patient) error {
	r.patients[p.ID] = *p
	return nil
}

func (r *fakePatientRepo) GetByID(id string) (*models.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *fakePatientRepo) GetAll() ([]models.Patient, error) {
	var out []models.Patient
	for _, p := range r.patients {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePatientRepo) Update(p *models.Patient) error {
	r.patients[p.ID] = *p
	return nil
}

func (r *fakePatientRepo) Delete(id string) error {
	delete(r.patients, id)
	return nil
}

type fakeExamRepo struct {
	exams  map[string]map[uint]models.Examination
	nextID map[string]uint
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{
		exams:  make(map[string]map[uint]models.Examination),
		nextID: make(map[string]uint),
	}
}

func (r *fakeExamRepo) table(space string) map[uint]models.Examination {
	if r.exams[space] == nil {
		r.exams[space] = make(map[uint]models.Examination)
	}
	return r.exams[space]
}

func (r *fakeExamRepo) Create(space string, exam *models.Examination) error {
	r.nextID[space]++
	exam.ID = r.nextID[space]
	r.table(space)[exam.ID] = *exam
	return nil
}

func (r *fakeExamRepo) GetByID(space string, id uint) (*models.Examination, error) {
	exam, ok := r.table(space)[id]
	if !ok {
		return nil, nil
	}
	return &exam, nil
}

func (r *fakeExamRepo) List(space string, patientID string) ([]models.Examination, error) {
	var out []models.Examination
	for _, exam := range r.table(space) {
		if patientID == "" || exam.PatientID == patientID {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (r *fakeExamRepo) UpdateDiagnosis(space string, id uint, diagnosis int, date string) (*models.Examination, error) {
	exam, ok := r.table(space)[id]
	if !ok {
		return nil, nil
	}
	exam.DoctorDiagnosis = &diagnosis
	exam.DiagnosisDate = &date
	r.table(space)[id] = exam
	return &exam, nil
}

func (r *fakeExamRepo) ListTrainingReady(space string) ([]models.Examination, error) {
	var out []models.Examination
	for _, exam := range r.table(space) {
		if exam.DoctorDiagnosis != nil && !exam.IsUsedForTraining {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (r *fakeExamRepo) MarkTrained(space string, ids []uint) (int64, error) {
	var updated int64
	for _, id := range ids {
		exam, ok := r.table(space)[id]
		if !ok || exam.DoctorDiagnosis == nil || exam.IsUsedForTraining {
			continue
		}
		exam.IsUsedForTraining = true
		r.table(space)[id] = exam
		updated++
	}
	return updated, nil
}

func (r *fakeExamRepo) Stats(space string) (*models.TrainingStats, error) {
	stats := &models.TrainingStats{}
	for _, exam := range r.table(space) {
		stats.TotalExaminations++
		switch {
		case exam.DoctorDiagnosis == nil:
			stats.PendingDiagnosis++
		case exam.IsUsedForTraining:
			stats.AlreadyTrained++
		default:
			stats.ReadyForTraining++
		}
	}
	return stats, nil
}

func newTestRouter(t *testing.T, primaryProb float64) (*gin.Engine, *fakePatientRepo, *fakeExamRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	patientRepo := newFakePatientRepo()
	patientRepo.Create(&models.Patient{ID: "P1", Name: "Alice Nguyen", Age: 54, Gender: "female"})
	examRepo := newFakeExamRepo()

	repoManager := &repository.RepositoryManager{
		Patient:     patientRepo,
		Examination: examRepo,
	}

	predictor := newStubPredictor(primaryProb)
	examService := services.NewExaminationService(repoManager, predictor, testLogger())

	predictHandler := NewPredictHandler(predictor, nil, testLogger())
	patientHandler := NewPatientHandler(repoManager, testLogger())
	examHandler := NewExaminationHandler(examService, nil, testLogger())

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/predict/:space", predictHandler.HandlePredict)
	v1.POST("/predict/:space/compare", predictHandler.HandleCompare)
	v1.POST("/predict/:space/explain", predictHandler.HandleExplain)
	v1.GET("/patients/:id", patientHandler.HandleGet)
	v1.POST("/patients", patientHandler.HandleCreate)
	v1.GET("/examinations/:space", examHandler.HandleList)
	v1.POST("/examinations/:space", examHandler.HandleCreate)
	v1.PUT("/examinations/:space/:id/diagnosis", examHandler.HandleDiagnosis)
	v1.GET("/examinations/:space/stats", examHandler.HandleStats)
	v1.POST("/examinations/:space/mark-trained", examHandler.HandleMarkTrained)

	return router, patientRepo, examRepo
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) utils.APIResponse {
	t.Helper()
	var envelope utils.APIResponse
	raw := struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	envelope.Success = raw.Success
	envelope.Message = raw.Message
	envelope.Error = raw.Error
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return envelope
}

func TestPredictUnknownSpace(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	w := doRequest(router, "POST", "/api/v1/predict/dental", `{"samples": [`+lifestyleSampleJSON()+`]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w, nil)
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Message, "dental")
}

func TestPredictBatch(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	body := fmt.Sprintf(`{"samples": [%s, %s]}`, lifestyleSampleJSON(), lifestyleSampleJSON())
	w := doRequest(router, "POST", "/api/v1/predict/lifestyle", body)
	require.Equal(t, http.StatusOK, w.Code)

	var results []models.PredictionResult
	decodeEnvelope(t, w, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "High", results[0].RiskLevel)
	assert.InDelta(t, 0.8, results[0].Confidence, 1e-9)
}

func TestPredictEmptySamples(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	w := doRequest(router, "POST", "/api/v1/predict/lifestyle", `{"samples": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictFeatureMismatch(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	w := doRequest(router, "POST", "/api/v1/predict/lifestyle", `{"samples": [{"gender": 1}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w, nil)
	assert.Contains(t, envelope.Error, "lifestyle")
}

func TestCompareSingleModel(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.3)

	w := doRequest(router, "POST", "/api/v1/predict/lifestyle/compare", `{"features": `+lifestyleSampleJSON()+`}`)
	require.Equal(t, http.StatusOK, w.Code)

	var comparison models.ComparisonResponse
	decodeEnvelope(t, w, &comparison)
	require.Len(t, comparison.AllModels, 1)
	assert.Equal(t, "cardio_stacking", comparison.BestModel.ModelKey)
	assert.Equal(t, 1, comparison.Consensus.LowRiskCount)
}

func TestExplainProbabilityFallback(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	w := doRequest(router, "POST", "/api/v1/predict/lifestyle/explain", `{"features": `+lifestyleSampleJSON()+`}`)
	require.Equal(t, http.StatusOK, w.Code)

	var explanation models.ExplanationResponse
	decodeEnvelope(t, w, &explanation)
	assert.Equal(t, "probability_only", explanation.Method)
	assert.Len(t, explanation.Factors, len(models.LifestyleSpace.Features))
}

func TestPatientNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	w := doRequest(router, "GET", "/api/v1/patients/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPatientCreateInvalidGender(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	w := doRequest(router, "POST", "/api/v1/patients", `{"id": "P2", "name": "Bob Tran", "age": 40, "gender": "robot"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExaminationLifecycle(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	body := `{"patient_id": "P1", "features": ` + lifestyleSampleJSON() + `}`
	w := doRequest(router, "POST", "/api/v1/examinations/lifestyle", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var exam models.Examination
	decodeEnvelope(t, w, &exam)
	assert.Equal(t, 1, exam.ModelPrediction)
	assert.False(t, exam.IsUsedForTraining)

	w = doRequest(router, "PUT", fmt.Sprintf("/api/v1/examinations/lifestyle/%d/diagnosis", exam.ID), `{"diagnosis": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var diagnosed models.Examination
	decodeEnvelope(t, w, &diagnosed)
	require.NotNil(t, diagnosed.DoctorDiagnosis)
	assert.Equal(t, 1, *diagnosed.DoctorDiagnosis)

	w = doRequest(router, "GET", "/api/v1/examinations/lifestyle/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.TrainingStats
	decodeEnvelope(t, w, &stats)
	assert.Equal(t, int64(1), stats.ReadyForTraining)

	w = doRequest(router, "POST", "/api/v1/examinations/lifestyle/mark-trained",
		fmt.Sprintf(`{"ids": [%d]}`, exam.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var marked models.MarkTrainedResponse
	decodeEnvelope(t, w, &marked)
	assert.Equal(t, int64(1), marked.Updated)
}

func TestExaminationUnknownPatient(t *testing.T) {
	router, _, _ := newTestRouter(t, 0.8)

	body := `{"patient_id": "ghost", "features": ` + lifestyleSampleJSON() + `}`
	w := doRequest(router, "POST", "/api/v1/examinations/lifestyle", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagnosisZeroValueAccepted(t *testing.T) {
	router, _, examRepo := newTestRouter(t, 0.8)

	body := `{"patient_id": "P1", "features": ` + lifestyleSampleJSON() + `}`
	w := doRequest(router, "POST", "/api/v1/examinations/lifestyle", body)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(router, "PUT", "/api/v1/examinations/lifestyle/1/diagnosis", `{"diagnosis": 0}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := examRepo.GetByID("lifestyle", 1)
	require.NoError(t, err)
	require.NotNil(t, stored.DoctorDiagnosis)
	assert.Equal(t, 0, *stored.DoctorDiagnosis)
}

func TestAdminModelsAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := registry.New(t.TempDir(), testLogger())
	require.NoError(t, reg.Load())

	adminHandler := NewAdminHandler(reg, nil, testLogger())
	router := gin.New()
	router.GET("/admin/models", adminHandler.HandleModels)
	router.GET("/admin/metrics", adminHandler.HandleMetrics)
	router.GET("/admin/confusion", adminHandler.HandleConfusion)

	w := doRequest(router, "GET", "/admin/models", "")
	require.Equal(t, http.StatusOK, w.Code)
	var statuses []models.ModelStatus
	decodeEnvelope(t, w, &statuses)
	assert.Len(t, statuses, 8)
	for _, status := range statuses {
		assert.False(t, status.Loaded)
	}

	w = doRequest(router, "GET", "/admin/metrics?model=cardio_rf", "")
	require.Equal(t, http.StatusOK, w.Code)
	var metrics models.ModelMetrics
	decodeEnvelope(t, w, &metrics)
	assert.Equal(t, "cardio_rf", metrics.Key)

	w = doRequest(router, "GET", "/admin/metrics?model=bogus", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, "GET", "/admin/confusion", "")
	require.Equal(t, http.StatusOK, w.Code)
	var matrices map[string]models.ConfusionMatrix
	decodeEnvelope(t, w, &matrices)
	assert.Len(t, matrices, 8)
}

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{&models.NotFoundError{Resource: "patient", ID: "P9"}, http.StatusNotFound},
		{&models.FeatureMismatchError{Space: "lifestyle", Missing: []string{"age_bin"}}, http.StatusBadRequest},
		{&models.ModelUnavailableError{Space: "clinical", Reason: "no models loaded"}, http.StatusInternalServerError},
		{&models.InsufficientDataError{Space: "lifestyle", Ready: 3, Min: 50}, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, "failed", tc.err)
		assert.Equal(t, tc.code, w.Code)
	}
}
