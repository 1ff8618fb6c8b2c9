package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is unique per (job, reviewer role): one from the client, one from the provider.
type Review struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	JobID        uuid.UUID `gorm:"type:char(36);not null;uniqueIndex:idx_review_job_role" json:"job_id"`
	ReviewerRole Role      `gorm:"type:varchar(20);not null;uniqueIndex:idx_review_job_role" json:"reviewer_role"`
	ReviewerID   uuid.UUID `gorm:"type:char(36);index;not null" json:"reviewer_id"`
	RevieweeID   uuid.UUID `gorm:"type:char(36);index;not null" json:"reviewee_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
