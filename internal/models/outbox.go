package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxDead      OutboxStatus = "dead"
)

const OutboxKindNotification = "notification"

// OutboxEvent is a side effect committed together with a state change
// and delivered later by the dispatcher.
type OutboxEvent struct {
	ID            uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	Kind          string         `gorm:"type:varchar(50);not null" json:"kind"`
	RecipientID   uuid.UUID      `gorm:"type:char(36);index;not null" json:"recipient_id"`
	Payload       datatypes.JSON `json:"payload"`
	Status        OutboxStatus   `gorm:"type:varchar(20);not null;default:pending;index:idx_outbox_due,priority:1" json:"status"`
	Attempts      int            `gorm:"default:0" json:"attempts"`
	NextAttemptAt time.Time      `gorm:"index:idx_outbox_due,priority:2" json:"next_attempt_at"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *OutboxEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OutboxPending
	}
	if o.NextAttemptAt.IsZero() {
		o.NextAttemptAt = time.Now()
	}
	return
}
