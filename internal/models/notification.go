package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is only ever mutated to flip IsRead, or deleted in bulk.
type Notification struct {
	ID       uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	UserID   uuid.UUID      `gorm:"type:char(36);index;not null" json:"user_id"`
	Title    string         `gorm:"type:varchar(200);not null" json:"title"`
	Body     string         `gorm:"type:text" json:"body"`
	Type     string         `gorm:"type:varchar(50);index" json:"type"`
	Link     string         `json:"link,omitempty"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
	IsRead   bool           `gorm:"default:false;index" json:"is_read"`
	ReadAt   *time.Time     `json:"read_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return
}
