// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a chat between one client and one provider, optionally tied to a job.
type Conversation struct {
	ID uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`

	ClientID   uuid.UUID  `gorm:"type:char(36);index;not null" json:"client_id"`
	ProviderID uuid.UUID  `gorm:"type:char(36);index;not null" json:"provider_id"`
	JobID      *uuid.UUID `gorm:"type:char(36);index" json:"job_id,omitempty"`

	// unread counter per participant
	ClientUnread   int `gorm:"default:0" json:"client_unread"`
	ProviderUnread int `gorm:"default:0" json:"provider_unread"`

	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// Has reports whether userID is one of the two participants.
func (c *Conversation) Has(userID uuid.UUID) bool {
	return c.ClientID == userID || c.ProviderID == userID
}

// Message represents a message in a conversation
type Message struct {
	ID             uuid.UUID  `gorm:"type:char(36);primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:char(36);index;not null" json:"conversation_id"`
	SenderID       uuid.UUID  `gorm:"type:char(36);index;not null" json:"sender_id"`
	Type           string     `gorm:"default:'text'" json:"type"` // text, system
	Text           string     `gorm:"type:text" json:"text"`
	IsRead         bool       `gorm:"default:false" json:"is_read"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = "text"
	}
	return
}
