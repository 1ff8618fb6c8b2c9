package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
)

// EventNew is pushed to the recipient after a notification is stored.
const EventNew = "notification:new"

type NotificationService struct {
	DB     *gorm.DB
	Pusher realtime.Pusher
}

func NewNotificationService(db *gorm.DB, pusher realtime.Pusher) *NotificationService {
	return &NotificationService{DB: db, Pusher: pusher}
}

// Notify stores a notification and pushes it to the recipient right away.
func (s *NotificationService) Notify(ctx context.Context, n lifecycle.Notify) (*models.Notification, error) {
	rec, err := create(s.DB.WithContext(ctx), n.Recipient, payloadOf(n))
	if err != nil {
		return nil, err
	}
	s.push(rec)
	return rec, nil
}

func (s *NotificationService) push(rec *models.Notification) {
	if s.Pusher == nil || rec == nil {
		return
	}
	s.Pusher.PushToUser(rec.UserID, EventNew, rec)
}

// payload is the outbox body of a notification event.
type payload struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Type     string         `json:"type"`
	Link     string         `json:"link,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func payloadOf(n lifecycle.Notify) payload {
	return payload{Title: n.Title, Body: n.Body, Type: n.Type, Link: n.Link, Metadata: n.Metadata}
}

func create(tx *gorm.DB, recipient uuid.UUID, p payload) (*models.Notification, error) {
	rec := models.Notification{
		UserID: recipient,
		Title:  p.Title,
		Body:   p.Body,
		Type:   p.Type,
		Link:   p.Link,
	}
	if len(p.Metadata) > 0 {
		meta, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, err
		}
		rec.Metadata = datatypes.JSON(meta)
	}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Enqueue writes n to the outbox through tx so it commits with the caller's state change.
func Enqueue(tx *gorm.DB, n lifecycle.Notify) error {
	body, err := json.Marshal(payloadOf(n))
	if err != nil {
		return err
	}
	ev := models.OutboxEvent{
		Kind:        models.OutboxKindNotification,
		RecipientID: n.Recipient,
		Payload:     datatypes.JSON(body),
	}
	return tx.Create(&ev).Error
}

// List returns a page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]models.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	q := s.DB.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Notification
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, err
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// MarkRead flips one notification of the user to read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) (*models.Notification, error) {
	var rec models.Notification
	if err := s.DB.WithContext(ctx).First(&rec, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, apperrors.FromDB(err, "notification")
	}
	if rec.IsRead {
		return &rec, nil
	}
	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(&rec).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": now,
	}).Error; err != nil {
		return nil, err
	}
	rec.IsRead = true
	rec.ReadAt = &now
	return &rec, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
