package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// CreditEarnings adds to the provider's total earnings and writes a ledger entry.
// This should be called within a DB transaction.
func (s *WalletService) CreditEarnings(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, referenceID uuid.UUID, description string) error {
	return s.apply(tx, "total_earnings", models.WalletTrxCredit, userID, amount, referenceID, description)
}

// RecordSpend adds to the client's total spent and writes a ledger entry.
// This should be called within a DB transaction.
func (s *WalletService) RecordSpend(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, referenceID uuid.UUID, description string) error {
	return s.apply(tx, "total_spent", models.WalletTrxDebit, userID, amount, referenceID, description)
}

func (s *WalletService) apply(tx *gorm.DB, column string, typ models.WalletTrxType, userID uuid.UUID, amount decimal.Decimal, referenceID uuid.UUID, description string) error {
	if !amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}

	// 1. Update total atomically
	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update(column, gorm.Expr(column+" + ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user not found for id %s", userID)
	}

	// 2. Create WalletTransaction (Ledger)
	ledger := models.WalletTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        typ,
		Description: description,
		ReferenceID: &referenceID,
	}
	return tx.Create(&ledger).Error
}

// History returns the latest ledger entries of a user, newest first.
func (s *WalletService) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.WalletTransaction
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
