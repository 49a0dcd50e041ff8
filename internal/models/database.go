package models

// GORM models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// FeatureMap stores a named feature vector as jsonb.
type FeatureMap map[string]float64

func (m FeatureMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *FeatureMap) Scan(value interface{}) error {
	if value == nil {
		*m = FeatureMap{}
		return nil
	}

	switch v := value.(type) {
	case string:
		return json.Unmarshal([]byte(v), m)
	case []byte:
		return json.Unmarshal(v, m)
	default:
		return fmt.Errorf("cannot scan %T into FeatureMap", value)
	}
}

// Base model with common fields
type BaseModel struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patient represents a registered patient
type Patient struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null"`
	Age         int     `json:"age"`
	Gender      string  `json:"gender" gorm:"check:gender IN ('male','female','other')"`
	RiskLevel   string  `json:"risk_level" gorm:"default:'unknown'"`
	HealthScore float64 `json:"health_score" gorm:"type:decimal(5,2);default:0"`
	BaseModel
}

// Examination represents one stored prediction event awaiting clinician
// confirmation. The same struct backs both the lifestyle and clinical
// tables; the repository scopes queries to the table for the requested
// space so each space keeps its own monotonic id sequence.
type Examination struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	PatientID         string     `json:"patient_id" gorm:"not null;index"`
	ExamDate          string     `json:"exam_date"`
	Features          FeatureMap `json:"features" gorm:"type:jsonb"`
	ModelPrediction   int        `json:"model_prediction"`
	ModelConfidence   float64    `json:"model_confidence" gorm:"type:decimal(6,4)"`
	DoctorDiagnosis   *int       `json:"doctor_diagnosis"`
	DiagnosisDate     *string    `json:"diagnosis_date"`
	IsUsedForTraining bool       `json:"is_used_for_training" gorm:"default:false"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TrainingStats is the four-count lifecycle snapshot for one space.
// Pending + Ready + Trained == Total at any point.
type TrainingStats struct {
	TotalExaminations int64 `json:"total_examinations"`
	PendingDiagnosis  int64 `json:"pending_diagnosis"`
	ReadyForTraining  int64 `json:"ready_for_training"`
	AlreadyTrained    int64 `json:"already_trained"`
}

// SystemHealth represents service health monitoring
type SystemHealth struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceName    string    `json:"service_name" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null;check:status IN ('healthy','degraded','unhealthy')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at" gorm:"default:NOW()"`
}

// Database interfaces for repository pattern
type PatientRepository interface {
	Create(patient *Patient) error
	GetByID(id string) (*Patient, error)
	GetAll() ([]Patient, error)
	Update(patient *Patient) error
	Delete(id string) error
}

type ExaminationRepository interface {
	Create(space string, exam *Examination) error
	GetByID(space string, id uint) (*Examination, error)
	List(space string, patientID string) ([]Examination, error)
	UpdateDiagnosis(space string, id uint, diagnosis int, date string) (*Examination, error)
	ListTrainingReady(space string) ([]Examination, error)
	MarkTrained(space string, ids []uint) (int64, error)
	Stats(space string) (*TrainingStats, error)
}

type SystemHealthRepository interface {
	UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error
	GetServiceHealth(serviceName string) (*SystemHealth, error)
	GetAllServicesHealth() ([]SystemHealth, error)
}

// TableName methods for custom table names
func (Patient) TableName() string      { return "patients" }
func (SystemHealth) TableName() string { return "system_health" }

// ExaminationTable maps a space name to its table.
func ExaminationTable(space string) string {
	return space + "_examinations"
}

// Model validation methods
func (p *Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("patient id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("patient name is required")
	}
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("invalid age: %d", p.Age)
	}
	switch p.Gender {
	case "male", "female", "other":
	default:
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	return nil
}

func (e *Examination) Validate() error {
	if e.PatientID == "" {
		return fmt.Errorf("patient id is required")
	}
	if len(e.Features) == 0 {
		return fmt.Errorf("features are required")
	}
	if e.ModelPrediction != 0 && e.ModelPrediction != 1 {
		return fmt.Errorf("invalid model prediction: %d", e.ModelPrediction)
	}
	return nil
}

// GORM hooks
func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	return p.Validate()
}

func (p *Patient) BeforeUpdate(tx *gorm.DB) error {
	return p.Validate()
}
