package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DirectJobStatus string

const (
	DirectJobRequested  DirectJobStatus = "requested"
	DirectJobInProgress DirectJobStatus = "in-progress"
	DirectJobCompleted  DirectJobStatus = "completed"
	DirectJobDeclined   DirectJobStatus = "declined"
	DirectJobCancelled  DirectJobStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// DirectJob is a private client to provider invitation outside the job board.
type DirectJob struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	ClientID   uuid.UUID `gorm:"type:char(36);index;not null" json:"client_id"`
	ProviderID uuid.UUID `gorm:"type:char(36);index;not null" json:"provider_id"`

	Title       string          `gorm:"type:varchar(200);not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	Address     string          `json:"address"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`

	Status        DirectJobStatus `gorm:"type:varchar(20);not null;default:requested;index" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null;default:pending" json:"payment_status"`
	DeclineReason string          `gorm:"type:text" json:"decline_reason,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (d *DirectJob) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DirectJobRequested
	}
	if d.PaymentStatus == "" {
		d.PaymentStatus = PaymentPending
	}
	return
}
