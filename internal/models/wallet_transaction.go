package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WalletTrxType string

const (
	WalletTrxCredit WalletTrxType = "credit" // pendapatan provider
	WalletTrxDebit  WalletTrxType = "debit"  // pengeluaran client
)

type WalletTransaction struct {
	ID          uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:char(36);index;not null" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Type        WalletTrxType   `gorm:"type:varchar(20);not null" json:"type"`
	Description string          `gorm:"type:text" json:"description"`
	ReferenceID *uuid.UUID      `gorm:"type:char(36);index" json:"reference_id,omitempty"` // ID DirectJob
	CreatedAt   time.Time       `json:"created_at"`
}

func (w *WalletTransaction) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}
