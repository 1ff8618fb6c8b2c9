// Package effects applies lifecycle effects inside the caller's transaction.
package effects

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/db"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/metrics"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/chat"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/notification"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/wallet"
)

type Applier struct {
	Wallet  *wallet.WalletService
	Metrics *metrics.Collector
}

func NewApplier(w *wallet.WalletService, m *metrics.Collector) *Applier {
	return &Applier{Wallet: w, Metrics: m}
}

// Applied lists what Apply wrote, for work that must wait for the commit.
type Applied struct {
	Names         []string
	StatusChanged []uuid.UUID
}

// Apply writes every effect through tx. Any error aborts the whole unit of work.
func (a *Applier) Apply(tx *gorm.DB, effs []lifecycle.Effect) (Applied, error) {
	var out Applied
	for _, e := range effs {
		if err := a.apply(tx, e, &out); err != nil {
			return out, fmt.Errorf("apply %s: %w", lifecycle.Name(e), err)
		}
		out.Names = append(out.Names, lifecycle.Name(e))
	}
	return out, nil
}

// Committed records metrics for effects whose transaction committed.
func (a *Applier) Committed(ap Applied) {
	for _, name := range ap.Names {
		a.Metrics.RecordEffect(name)
	}
}

func (a *Applier) apply(tx *gorm.DB, e lifecycle.Effect, out *Applied) error {
	switch e := e.(type) {
	case lifecycle.Notify:
		return notification.Enqueue(tx, e)

	case lifecycle.SetApplicationStatus:
		return tx.Model(&models.Application{}).
			Where("id = ?", e.ApplicationID).
			Update("status", e.Status).Error

	case lifecycle.IncrementCompletedJobs:
		res := tx.Model(&models.User{}).
			Where("id = ?", e.UserID).
			Update("completed_jobs", gorm.Expr("completed_jobs + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("user")
		}
		return nil

	case lifecycle.DeleteConversations:
		var err error
		if e.Pair {
			_, err = chat.DeleteForJobPair(tx, e.JobID, e.ClientID, e.ProviderID)
		} else {
			_, err = chat.DeleteForJob(tx, e.JobID)
		}
		return err

	case lifecycle.CreditEarnings:
		return a.Wallet.CreditEarnings(tx, e.UserID, e.Amount, e.ReferenceID, "Pembayaran direct job")

	case lifecycle.RecordSpend:
		return a.Wallet.RecordSpend(tx, e.UserID, e.Amount, e.ReferenceID, "Pembayaran direct job")

	case lifecycle.SetUserStatus:
		q := tx.Model(&models.User{}).Where("id = ?", e.UserID)
		if !e.Banned {
			// a ban is final; later suspensions never lift it
			q = q.Where("status <> ? AND is_banned = ?", models.UserBanned, false)
		}
		res := q.Updates(map[string]interface{}{
			"status":    e.Status,
			"is_banned": e.Banned,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.User{}).Where("id = ?", e.UserID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperrors.NotFound("user")
			}
			return nil
		}
		out.StatusChanged = append(out.StatusChanged, e.UserID)
		return nil
	}
	return fmt.Errorf("unknown effect %T", e)
}

// Transition runs fn in one transaction, applies the effects it returns
// and records the outcome under entity. to labels the target state.
func (a *Applier) Transition(ctx context.Context, gdb *gorm.DB, entity string, fn func(tx *gorm.DB) (to string, effs []lifecycle.Effect, err error)) (Applied, error) {
	var (
		applied Applied
		to      string
	)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			effs []lifecycle.Effect
			err  error
		)
		to, effs, err = fn(tx)
		if err != nil {
			return err
		}
		applied, err = a.Apply(tx, effs)
		return err
	})
	if err != nil {
		a.Metrics.RecordTransitionError(entity, apperrors.KindOf(err).String())
		return Applied{}, err
	}
	a.Committed(applied)
	a.Metrics.RecordTransition(entity, to)
	return applied, nil
}

// LoadActor re-reads the acting user inside tx. Inactive users cannot act.
func LoadActor(tx *gorm.DB, userID uuid.UUID) (lifecycle.Actor, error) {
	var u models.User
	if err := tx.Select("id", "role", "status", "is_banned").First(&u, "id = ?", userID).Error; err != nil {
		if apperrors.Is(apperrors.FromDB(err, "user"), apperrors.KindNotFound) {
			return lifecycle.Actor{}, apperrors.Unauthorized("user no longer exists")
		}
		return lifecycle.Actor{}, err
	}
	if !u.IsActive() {
		return lifecycle.Actor{}, apperrors.ErrAccountInactive
	}
	return lifecycle.Actor{ID: u.ID, Role: u.Role}, nil
}

// Lock loads dest by id with a row lock when the dialect supports it.
func Lock(tx *gorm.DB, dest interface{}, id uuid.UUID, what string) error {
	if err := db.ForUpdate(tx).First(dest, "id = ?", id).Error; err != nil {
		return apperrors.FromDB(err, what)
	}
	return nil
}
