package moderation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
)

// StatusInvalidator drops cached account state so the next request re-reads it.
type StatusInvalidator interface {
	InvalidateStatus(ctx context.Context, userID uuid.UUID)
}

type ReportService struct {
	DB          *gorm.DB
	Effects     *effects.Applier
	Invalidator StatusInvalidator
	// Sessions, when set, drops open sockets of suspended or banned users.
	Sessions realtime.Disconnector

	now func() time.Time
}

func NewReportService(db *gorm.DB, applier *effects.Applier, inv StatusInvalidator) *ReportService {
	return &ReportService{DB: db, Effects: applier, Invalidator: inv, now: time.Now}
}

type CreateInput struct {
	ReportedUserID uuid.UUID
	Reason         string
	Description    string
}

// Create files a report against another user. Admins are notified.
func (s *ReportService) Create(ctx context.Context, reporterID uuid.UUID, in CreateInput) (*models.Report, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperrors.Validation("reason is required")
	}
	if in.ReportedUserID == reporterID {
		return nil, apperrors.Validation("you cannot report yourself")
	}

	var rep models.Report
	_, err := s.Effects.Transition(ctx, s.DB, "report", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		if _, err := effects.LoadActor(tx, reporterID); err != nil {
			return "", nil, err
		}
		var reported models.User
		if err := tx.Select("id", "name").First(&reported, "id = ?", in.ReportedUserID).Error; err != nil {
			return "", nil, apperrors.FromDB(err, "reported user")
		}

		rep = models.Report{
			ReporterID:     reporterID,
			ReportedUserID: reported.ID,
			Reason:         reason,
			Description:    strings.TrimSpace(in.Description),
		}
		if err := tx.Create(&rep).Error; err != nil {
			return "", nil, err
		}

		var admins []uuid.UUID
		if err := tx.Model(&models.User{}).
			Where("role = ? AND status = ?", models.RoleAdmin, models.UserActive).
			Pluck("id", &admins).Error; err != nil {
			return "", nil, err
		}
		effs := make([]lifecycle.Effect, 0, len(admins))
		for _, id := range admins {
			effs = append(effs, lifecycle.Notify{
				Recipient: id,
				Title:     "New report",
				Body:      fmt.Sprintf("%s was reported: %s.", reported.Name, reason),
				Type:      lifecycle.TypeReport,
				Link:      "/admin/reports/" + rep.ID.String(),
				Metadata:  map[string]any{"report_id": rep.ID.String()},
			})
		}
		return string(models.ReportPending), effs, nil
	})
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns reports for admins, newest first, optionally filtered by status.
func (s *ReportService) List(ctx context.Context, adminID uuid.UUID, status models.ReportStatus, page, limit int) ([]models.Report, int64, error) {
	actor, err := effects.LoadActor(s.DB.WithContext(ctx), adminID)
	if err != nil {
		return nil, 0, err
	}
	if !actor.IsAdmin() {
		return nil, 0, apperrors.Forbidden("admin only")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	q := s.DB.WithContext(ctx).Model(&models.Report{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Report
	err = q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, err
}

// Resolve closes a pending report. A suspend or ban takes effect on the
// reported user's very next request.
func (s *ReportService) Resolve(ctx context.Context, adminID, reportID uuid.UUID, res lifecycle.Resolution) (*models.Report, error) {
	var result models.Report
	applied, err := s.Effects.Transition(ctx, s.DB, "report", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, adminID)
		if err != nil {
			return "", nil, err
		}
		var rep models.Report
		if err := effects.Lock(tx, &rep, reportID, "report"); err != nil {
			return "", nil, err
		}

		out, err := lifecycle.ResolveReport(rep, res, actor, s.clock())
		if err != nil {
			return "", nil, err
		}
		if err := tx.Save(&out.Report).Error; err != nil {
			return "", nil, err
		}
		result = out.Report
		return string(res.Status), out.Effects, nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range applied.StatusChanged {
		log.Printf("[Moderation] user %s is now %s (report %s)", id, result.ActionTaken, result.ID)
		if s.Invalidator != nil {
			s.Invalidator.InvalidateStatus(ctx, id)
		}
		if s.Sessions != nil {
			s.Sessions.DisconnectUser(id)
		}
	}
	return &result, nil
}

func (s *ReportService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
