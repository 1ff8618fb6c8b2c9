package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"
	ReportRejected ReportStatus = "rejected"
)

type ReportAction string

const (
	ReportActionNone    ReportAction = ""
	ReportActionWarning ReportAction = "warning"
	ReportActionSuspend ReportAction = "suspend"
	ReportActionBan     ReportAction = "ban"
)

type Report struct {
	ID             uuid.UUID    `gorm:"type:char(36);primaryKey" json:"id"`
	ReporterID     uuid.UUID    `gorm:"type:char(36);index;not null" json:"reporter_id"`
	ReportedUserID uuid.UUID    `gorm:"type:char(36);index;not null" json:"reported_user_id"`
	Reason         string       `gorm:"type:varchar(100);not null" json:"reason"`
	Description    string       `gorm:"type:text" json:"description"`
	Status         ReportStatus `gorm:"type:varchar(20);not null;default:pending;index" json:"status"`

	ActionTaken  ReportAction `gorm:"type:varchar(20)" json:"action_taken,omitempty"`
	AdminMessage string       `gorm:"type:text" json:"admin_message,omitempty"`
	ResolvedBy   *uuid.UUID   `gorm:"type:char(36)" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time   `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReportPending
	}
	return
}
