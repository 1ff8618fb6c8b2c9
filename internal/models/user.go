package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
	UserBanned    UserStatus = "banned"
)

type User struct {
	ID    uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	// nil kalau kosong, biar unique index tidak bentrok
	Phone *string `gorm:"type:varchar(30);uniqueIndex" json:"phone,omitempty"`

	Password string     `gorm:"not null" json:"-"`
	Role     Role       `gorm:"type:varchar(20);not null;index" json:"role"`
	Status   UserStatus `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	IsBanned bool       `gorm:"default:false" json:"is_banned"`

	// profile
	Bio        string                      `gorm:"type:text" json:"bio"`
	Skills     datatypes.JSONSlice[string] `json:"skills"`
	HourlyRate decimal.Decimal             `gorm:"type:decimal(20,2);not null;default:0" json:"hourly_rate"`
	Address    string                      `json:"address"`
	City       string                      `gorm:"type:varchar(100);index" json:"city"`
	Latitude   *float64                    `json:"latitude,omitempty"`
	Longitude  *float64                    `json:"longitude,omitempty"`

	// stats
	Rating        float64         `gorm:"default:0" json:"rating"`
	RatingTotal   int64           `gorm:"default:0" json:"-"`
	TotalRatings  int64           `gorm:"default:0" json:"total_ratings"`
	CompletedJobs int64           `gorm:"default:0" json:"completed_jobs"`
	TotalEarnings decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`
	TotalSpent    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_spent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	return
}

// IsActive reports whether the user may authenticate and act.
func (u *User) IsActive() bool {
	return u.Status == UserActive && !u.IsBanned
}
