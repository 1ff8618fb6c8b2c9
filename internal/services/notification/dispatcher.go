package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/metrics"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

const (
	defaultBatchSize   = 100
	defaultBaseBackoff = 5 * time.Second
	maxBackoff         = 10 * time.Minute
)

// errClaimed means another dispatcher delivered the event first.
var errClaimed = errors.New("outbox event already claimed")

// permanentError marks an event that can never be delivered.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Dispatcher delivers outbox events as notifications. Failed events are
// retried with exponential backoff and marked dead after MaxAttempts.
type Dispatcher struct {
	DB          *gorm.DB
	Notifier    *NotificationService
	Metrics     *metrics.Collector
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
	BaseBackoff time.Duration

	now func() time.Time
}

func NewDispatcher(db *gorm.DB, notifier *NotificationService, m *metrics.Collector, interval time.Duration, maxAttempts int) *Dispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Dispatcher{
		DB:          db,
		Notifier:    notifier,
		Metrics:     m,
		Interval:    interval,
		MaxAttempts: maxAttempts,
		BatchSize:   defaultBatchSize,
		BaseBackoff: defaultBaseBackoff,
		now:         time.Now,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()
	log.Printf("[Dispatcher] started (interval %s, max attempts %d)", d.Interval, d.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			log.Println("[Dispatcher] stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[Dispatcher] pass failed: %v", err)
			}
		}
	}
}

// DispatchOnce delivers every due event and returns how many were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	var due []models.OutboxEvent
	if err := d.DB.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.OutboxPending, d.clock()).
		Order("next_attempt_at ASC").
		Limit(batch).
		Find(&due).Error; err != nil {
		return 0, err
	}

	delivered := 0
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		ok, err := d.deliver(ctx, &due[i])
		if err != nil {
			log.Printf("[Dispatcher] event %s attempt %d failed: %v", due[i].ID, due[i].Attempts+1, err)
			d.fail(ctx, &due[i], err)
			continue
		}
		if ok {
			delivered++
		}
	}

	d.refreshPending(ctx)
	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev *models.OutboxEvent) (bool, error) {
	if ev.Kind != models.OutboxKindNotification {
		return false, permanentError{fmt.Errorf("unknown outbox kind %q", ev.Kind)}
	}
	var p payload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return false, permanentError{fmt.Errorf("decode payload: %w", err)}
	}
	if p.Title == "" {
		return false, permanentError{errors.New("notification without title")}
	}

	now := d.clock()
	var rec *models.Notification
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND status = ?", ev.ID, models.OutboxPending).
			Updates(map[string]interface{}{
				"status":       models.OutboxDelivered,
				"attempts":     gorm.Expr("attempts + 1"),
				"delivered_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errClaimed
		}

		var err error
		rec, err = create(tx, ev.RecipientID, p)
		return err
	})
	if errors.Is(err, errClaimed) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	d.Notifier.push(rec)
	d.Metrics.RecordDelivered(now.Sub(ev.CreatedAt).Seconds())
	return true, nil
}

func (d *Dispatcher) fail(ctx context.Context, ev *models.OutboxEvent, cause error) {
	attempts := ev.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": cause.Error(),
	}

	var perm permanentError
	if errors.As(cause, &perm) || attempts >= d.MaxAttempts {
		updates["status"] = models.OutboxDead
		d.Metrics.RecordDead()
		log.Printf("[Dispatcher] event %s is dead after %d attempts", ev.ID, attempts)
	} else {
		updates["next_attempt_at"] = d.clock().Add(d.backoff(attempts))
		d.Metrics.RecordDeliveryFailed()
	}

	if err := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", ev.ID, models.OutboxPending).
		Updates(updates).Error; err != nil {
		log.Printf("[Dispatcher] record failure of %s: %v", ev.ID, err)
	}
}

// backoff doubles from BaseBackoff per attempt, capped at maxBackoff.
func (d *Dispatcher) backoff(attempts int) time.Duration {
	base := d.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	wait := base
	for i := 1; i < attempts; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

func (d *Dispatcher) refreshPending(ctx context.Context) {
	var n int64
	if err := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("status = ?", models.OutboxPending).
		Count(&n).Error; err == nil {
		d.Metrics.SetOutboxPending(n)
	}
}

func (d *Dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// Events lists outbox events, newest first. An empty status lists all.
func (d *Dispatcher) Events(ctx context.Context, status models.OutboxStatus, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	q := d.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.OutboxEvent
	return out, q.Find(&out).Error
}

// Retry moves a dead event back to pending with a fresh attempt budget.
func (d *Dispatcher) Retry(ctx context.Context, id uuid.UUID) error {
	res := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id = ? AND status = ?", id, models.OutboxDead).
		Updates(map[string]interface{}{
			"status":          models.OutboxPending,
			"attempts":        0,
			"next_attempt_at": d.clock(),
			"last_error":      "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("dead outbox event")
	}
	return nil
}
