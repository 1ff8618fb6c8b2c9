package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationApplied     ApplicationStatus = "applied"
	ApplicationShortlisted ApplicationStatus = "shortlisted"
	ApplicationHired       ApplicationStatus = "hired"
	ApplicationCompleted   ApplicationStatus = "completed"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationWithdrawn   ApplicationStatus = "withdrawn"
)

// Application is a provider's bid on a job. One per (job, provider).
type Application struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	JobID      uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_application_job_provider" json:"job_id"`
	ProviderID uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_application_job_provider;index" json:"provider_id"`

	CoverLetter  string            `gorm:"type:text" json:"cover_letter"`
	ProposedRate decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"proposed_rate"`
	Status       ApplicationStatus `gorm:"type:varchar(20);not null;default:applied;index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = ApplicationApplied
	}
	return
}

func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case ApplicationCompleted, ApplicationRejected, ApplicationWithdrawn:
		return true
	}
	return false
}
