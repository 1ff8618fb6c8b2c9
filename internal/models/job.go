package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

// Job is a public work request posted by a client.
// AssignedProviderID is set only while the job is in-progress or completed.
type Job struct {
	ID       uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	ClientID uuid.UUID `gorm:"type:char(36);index;not null" json:"client_id"`

	Title       string                      `gorm:"type:varchar(200);not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Category    string                      `gorm:"type:varchar(100);index" json:"category"`
	Budget      decimal.Decimal             `gorm:"type:decimal(20,2);not null;default:0" json:"budget"`
	Skills      datatypes.JSONSlice[string] `json:"skills"`

	Address   string   `json:"address"`
	City      string   `gorm:"type:varchar(100);index" json:"city"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Status             JobStatus  `gorm:"type:varchar(20);not null;default:open;index" json:"status"`
	AssignedProviderID *uuid.UUID `gorm:"type:char(36);index" json:"assigned_provider_id,omitempty"`
	HiredApplicationID *uuid.UUID `gorm:"type:char(36)" json:"hired_application_id,omitempty"`
	ApplicantCount     int        `gorm:"default:0" json:"applicant_count"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JobOpen
	}
	return
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobOpen, JobInProgress, JobCompleted, JobCancelled:
		return true
	}
	return false
}

func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobCancelled
}
