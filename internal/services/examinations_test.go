package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvu-dev/cardiopredict/internal/models"
	"github.com/minhvu-dev/cardiopredict/internal/registry"
	"github.com/minhvu-dev/cardiopredict/internal/repository"
)

// In-memory repository fakes shared by the lifecycle and retrainer tests.

type fakePatientRepo struct {
	patients map[string]*models.Patient
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[string]*models.Patient)}
}

func (r *fakePatientRepo) Create(p *models.Patient) error {
	if _, exists := r.patients[p.ID]; exists {
		return fmt.Errorf("duplicate patient id %s", p.ID)
	}
	clone := *p
	r.patients[p.ID] = &clone
	return nil
}

func (r *fakePatientRepo) GetByID(id string) (*models.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *fakePatientRepo) GetAll() ([]models.Patient, error) {
	var out []models.Patient
	for _, p := range r.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePatientRepo) Update(p *models.Patient) error {
	clone := *p
	r.patients[p.ID] = &clone
	return nil
}

func (r *fakePatientRepo) Delete(id string) error {
	delete(r.patients, id)
	return nil
}

type fakeExamRepo struct {
	exams  map[string][]*models.Examination
	nextID map[string]uint
}

func newFakeExamRepo() *fakeExamRepo {
	return &fakeExamRepo{
		exams:  make(map[string][]*models.Examination),
		nextID: make(map[string]uint),
	}
}

func (r *fakeExamRepo) Create(space string, exam *models.Examination) error {
	if err := exam.Validate(); err != nil {
		return err
	}
	r.nextID[space]++
	exam.ID = r.nextID[space]
	clone := *exam
	r.exams[space] = append(r.exams[space], &clone)
	return nil
}

func (r *fakeExamRepo) GetByID(space string, id uint) (*models.Examination, error) {
	for _, exam := range r.exams[space] {
		if exam.ID == id {
			clone := *exam
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeExamRepo) List(space string, patientID string) ([]models.Examination, error) {
	var out []models.Examination
	for _, exam := range r.exams[space] {
		if patientID == "" || exam.PatientID == patientID {
			out = append(out, *exam)
		}
	}
	return out, nil
}

func (r *fakeExamRepo) UpdateDiagnosis(space string, id uint, diagnosis int, date string) (*models.Examination, error) {
	for _, exam := range r.exams[space] {
		if exam.ID == id {
			d := diagnosis
			dt := date
			exam.DoctorDiagnosis = &d
			exam.DiagnosisDate = &dt
			clone := *exam
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeExamRepo) ListTrainingReady(space string) ([]models.Examination, error) {
	var out []models.Examination
	for _, exam := range r.exams[space] {
		if exam.DoctorDiagnosis != nil && !exam.IsUsedForTraining {
			out = append(out, *exam)
		}
	}
	return out, nil
}

func (r *fakeExamRepo) MarkTrained(space string, ids []uint) (int64, error) {
	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var updated int64
	for _, exam := range r.exams[space] {
		if wanted[exam.ID] && exam.DoctorDiagnosis != nil && !exam.IsUsedForTraining {
			exam.IsUsedForTraining = true
			updated++
		}
	}
	return updated, nil
}

func (r *fakeExamRepo) Stats(space string) (*models.TrainingStats, error) {
	stats := &models.TrainingStats{}
	for _, exam := range r.exams[space] {
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

func newTestExamService(t *testing.T, primaryProb float64) (*ExaminationService, *fakeExamRepo) {
	t.Helper()

	source := newStubSource()
	source.add("cardio_stacking", fixedModel{p: primaryProb}, registry.CapabilityProba)
	predictor := NewPredictionService(source, testLogger())

	examRepo := newFakeExamRepo()
	patientRepo := newFakePatientRepo()
	require.NoError(t, patientRepo.Create(&models.Patient{ID: "P1", Name: "Alice Nguyen", Age: 52, Gender: "female"}))

	repoManager := &repository.RepositoryManager{
		Patient:     patientRepo,
		Examination: examRepo,
	}
	return NewExaminationService(repoManager, predictor, testLogger()), examRepo
}

func assertStatsInvariant(t *testing.T, stats *models.TrainingStats) {
	t.Helper()
	assert.Equal(t, stats.TotalExaminations,
		stats.PendingDiagnosis+stats.ReadyForTraining+stats.AlreadyTrained)
}

func TestExaminationLifecycleScenario(t *testing.T) {
	svc, _ := newTestExamService(t, 0.82)
	space := &models.LifestyleSpace

	exam, err := svc.Create(space, &models.CreateExaminationRequest{
		PatientID: "P1",
		Features:  lifestyleSample(),
	})
	require.NoError(t, err)

	assert.Equal(t, uint(1), exam.ID)
	assert.Equal(t, 1, exam.ModelPrediction)
	assert.InDelta(t, 0.82, exam.ModelConfidence, 1e-9)
	assert.Nil(t, exam.DoctorDiagnosis)
	assert.False(t, exam.IsUsedForTraining)
	assert.NotEmpty(t, exam.ExamDate)

	stats, err := svc.Stats(space)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalExaminations)
	assert.Equal(t, int64(1), stats.PendingDiagnosis)
	assertStatsInvariant(t, stats)

	diagnosed, err := svc.SetDiagnosis(space, exam.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, diagnosed.DoctorDiagnosis)
	assert.Equal(t, 1, *diagnosed.DoctorDiagnosis)
	assert.NotNil(t, diagnosed.DiagnosisDate)

	stats, err = svc.Stats(space)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.PendingDiagnosis)
	assert.Equal(t, int64(1), stats.ReadyForTraining)
	assertStatsInvariant(t, stats)

	updated, err := svc.MarkTrained(space, []uint{exam.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	stats, err = svc.Stats(space)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ReadyForTraining)
	assert.Equal(t, int64(1), stats.AlreadyTrained)
	assert.Equal(t, int64(1), stats.TotalExaminations)
	assertStatsInvariant(t, stats)
}

func TestCreateExaminationUnknownPatient(t *testing.T) {
	svc, _ := newTestExamService(t, 0.8)

	_, err := svc.Create(&models.LifestyleSpace, &models.CreateExaminationRequest{
		PatientID: "P404",
		Features:  lifestyleSample(),
	})

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "patient", notFound.Resource)
}

func TestSetDiagnosisUnknownExamination(t *testing.T) {
	svc, _ := newTestExamService(t, 0.8)

	_, err := svc.SetDiagnosis(&models.LifestyleSpace, 99, 1)

	var notFound *models.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSetDiagnosisOverwrites(t *testing.T) {
	svc, _ := newTestExamService(t, 0.8)
	space := &models.LifestyleSpace

	exam, err := svc.Create(space, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)

	_, err = svc.SetDiagnosis(space, exam.ID, 0)
	require.NoError(t, err)
	updated, err := svc.SetDiagnosis(space, exam.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, *updated.DoctorDiagnosis)
}

func TestMarkTrainedIdempotent(t *testing.T) {
	svc, _ := newTestExamService(t, 0.8)
	space := &models.LifestyleSpace

	exam, err := svc.Create(space, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)
	_, err = svc.SetDiagnosis(space, exam.ID, 1)
	require.NoError(t, err)

	// Unknown ids are skipped, not errors.
	updated, err := svc.MarkTrained(space, []uint{exam.ID, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	again, err := svc.MarkTrained(space, []uint{exam.ID, 42})
	require.NoError(t, err)
	assert.Equal(t, int64(0), again)

	stats, err := svc.Stats(space)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.AlreadyTrained)
	assertStatsInvariant(t, stats)
}

func TestMarkTrainedSkipsUndiagnosed(t *testing.T) {
	svc, _ := newTestExamService(t, 0.8)
	space := &models.LifestyleSpace

	pending, err := svc.Create(space, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)
	diagnosed, err := svc.Create(space, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)
	_, err = svc.SetDiagnosis(space, diagnosed.ID, 1)
	require.NoError(t, err)

	// The pending record has no diagnosis yet, so it must not be consumed.
	updated, err := svc.MarkTrained(space, []uint{pending.ID, diagnosed.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	stats, err := svc.Stats(space)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingDiagnosis)
	assert.Equal(t, int64(1), stats.AlreadyTrained)
	assertStatsInvariant(t, stats)
}

func TestLowRiskPredictionStoresZero(t *testing.T) {
	svc, _ := newTestExamService(t, 0.2)

	exam, err := svc.Create(&models.LifestyleSpace, &models.CreateExaminationRequest{
		PatientID: "P1",
		Features:  lifestyleSample(),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, exam.ModelPrediction)
	assert.InDelta(t, 0.8, exam.ModelConfidence, 1e-9)
}

func TestExportTrainingView(t *testing.T) {
	svc, _ := newTestExamService(t, 0.8)
	space := &models.LifestyleSpace

	first, err := svc.Create(space, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)
	_, err = svc.Create(space, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)

	_, err = svc.SetDiagnosis(space, first.ID, 1)
	require.NoError(t, err)

	export, err := svc.ExportTrainingView(space)
	require.NoError(t, err)

	// Only the diagnosed examination is exported.
	require.Len(t, export.Rows, 1)
	assert.Equal(t, float64(1), export.Rows[0]["target"])
	assert.Len(t, export.Columns, len(space.Features)+1)
	assert.Equal(t, "target", export.Columns[len(export.Columns)-1])
}

func TestCombinedStats(t *testing.T) {
	svc, examRepo := newTestExamService(t, 0.8)

	_, err := svc.Create(&models.LifestyleSpace, &models.CreateExaminationRequest{PatientID: "P1", Features: lifestyleSample()})
	require.NoError(t, err)

	// Seed a clinical record directly; the stub source only serves the
	// lifestyle space.
	diagnosis := 1
	require.NoError(t, examRepo.Create("clinical", &models.Examination{
		PatientID: "P1",
		Features:  models.FeatureMap{"sex": 1},
	}))
	_, err = examRepo.UpdateDiagnosis("clinical", 1, diagnosis, "2026-01-15")
	require.NoError(t, err)

	combined, err := svc.CombinedStats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), combined.Total.TotalExaminations)
	assert.Equal(t, int64(1), combined.Total.PendingDiagnosis)
	assert.Equal(t, int64(1), combined.Total.ReadyForTraining)
	assert.Equal(t, int64(1), combined.Lifestyle.PendingDiagnosis)
	assert.Equal(t, int64(1), combined.Clinical.ReadyForTraining)
}
