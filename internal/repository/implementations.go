package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/minhvu-dev/cardiopredict/internal/models"
)

// PatientRepositoryImpl implements PatientRepository
type PatientRepositoryImpl struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) models.PatientRepository {
	return &PatientRepositoryImpl{db: db}
}

func (r *PatientRepositoryImpl) Create(patient *models.Patient) error {
	return r.db.Create(patient).Error
}

// GetByID returns (nil, nil) when the patient does not exist; callers turn
// that into a NotFound.
func (r *PatientRepositoryImpl) GetByID(id string) (*models.Patient, error) {
	var patient models.Patient
	err := r.db.Where("id = ?", id).First(&patient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *PatientRepositoryImpl) GetAll() ([]models.Patient, error) {
	var patients []models.Patient
	err := r.db.Order("id").Find(&patients).Error
	return patients, err
}

func (r *PatientRepositoryImpl) Update(patient *models.Patient) error {
	return r.db.Save(patient).Error
}

func (r *PatientRepositoryImpl) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Patient{}).Error
}

// ExaminationRepositoryImpl implements ExaminationRepository. Every query
// is scoped to the table for the requested space so lifestyle and clinical
// examinations keep independent id sequences.
type ExaminationRepositoryImpl struct {
	db *gorm.DB
}

func NewExaminationRepository(db *gorm.DB) models.ExaminationRepository {
	return &ExaminationRepositoryImpl{db: db}
}

func (r *ExaminationRepositoryImpl) table(space string) *gorm.DB {
	return r.db.Table(models.ExaminationTable(space))
}

func (r *ExaminationRepositoryImpl) Create(space string, exam *models.Examination) error {
	if err := exam.Validate(); err != nil {
		return err
	}
	return r.table(space).Create(exam).Error
}

func (r *ExaminationRepositoryImpl) GetByID(space string, id uint) (*models.Examination, error) {
	var exam models.Examination
	err := r.table(space).Where("id = ?", id).First(&exam).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExaminationRepositoryImpl) List(space string, patientID string) ([]models.Examination, error) {
	query := r.table(space)
	if patientID != "" {
		query = query.Where("patient_id = ?", patientID)
	}
	var exams []models.Examination
	err := query.Order("id").Find(&exams).Error
	return exams, err
}

func (r *ExaminationRepositoryImpl) UpdateDiagnosis(space string, id uint, diagnosis int, date string) (*models.Examination, error) {
	result := r.table(space).Where("id = ?", id).Updates(map[string]interface{}{
		"doctor_diagnosis": diagnosis,
		"diagnosis_date":   date,
	})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(space, id)
}

func (r *ExaminationRepositoryImpl) ListTrainingReady(space string) ([]models.Examination, error) {
	var exams []models.Examination
	err := r.table(space).
		Where("doctor_diagnosis IS NOT NULL AND is_used_for_training = ?", false).
		Order("id").
		Find(&exams).Error
	return exams, err
}

// MarkTrained flips is_used_for_training for the given ids. Ids that do
// not exist, are still undiagnosed, or are already trained are skipped, so
// the returned count only covers newly consumed records and a repeat call
// reports 0. Undiagnosed records must stay pending or the stats no longer
// add up.
func (r *ExaminationRepositoryImpl) MarkTrained(space string, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.table(space).
		Where("id IN ? AND doctor_diagnosis IS NOT NULL AND is_used_for_training = ?", ids, false).
		Update("is_used_for_training", true)
	return result.RowsAffected, result.Error
}

func (r *ExaminationRepositoryImpl) Stats(space string) (*models.TrainingStats, error) {
	stats := &models.TrainingStats{}

	if err := r.table(space).Count(&stats.TotalExaminations).Error; err != nil {
		return nil, err
	}
	if err := r.table(space).Where("doctor_diagnosis IS NULL").Count(&stats.PendingDiagnosis).Error; err != nil {
		return nil, err
	}
	if err := r.table(space).
		Where("doctor_diagnosis IS NOT NULL AND is_used_for_training = ?", false).
		Count(&stats.ReadyForTraining).Error; err != nil {
		return nil, err
	}
	if err := r.table(space).Where("is_used_for_training = ?", true).Count(&stats.AlreadyTrained).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// SystemHealthRepositoryImpl implements SystemHealthRepository
type SystemHealthRepositoryImpl struct {
	db *gorm.DB
}

func NewSystemHealthRepository(db *gorm.DB) models.SystemHealthRepository {
	return &SystemHealthRepositoryImpl{db: db}
}

func (r *SystemHealthRepositoryImpl) UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error {
	return r.db.Exec(`
		INSERT INTO system_health (service_name, status, response_time_ms, error_message, checked_at)
		VALUES (?, ?, ?, ?, NOW())
	`, serviceName, status, responseTime, errorMsg).Error
}

func (r *SystemHealthRepositoryImpl) GetServiceHealth(serviceName string) (*models.SystemHealth, error) {
	var health models.SystemHealth
	err := r.db.Where("service_name = ?", serviceName).
		Order("checked_at DESC").
		First(&health).Error
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (r *SystemHealthRepositoryImpl) GetAllServicesHealth() ([]models.SystemHealth, error) {
	var health []models.SystemHealth
	err := r.db.Raw(`
		SELECT DISTINCT ON (service_name) *
		FROM system_health
		ORDER BY service_name, checked_at DESC
	`).Scan(&health).Error
	return health, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	Patient      models.PatientRepository
	Examination  models.ExaminationRepository
	SystemHealth models.SystemHealthRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		Patient:      NewPatientRepository(db),
		Examination:  NewExaminationRepository(db),
		SystemHealth: NewSystemHealthRepository(db),
	}
}
