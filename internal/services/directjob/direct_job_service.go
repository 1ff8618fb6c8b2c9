package directjob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
)

// EventStatus is pushed to both parties after a direct job changes.
const EventStatus = "direct_job:status"

type DirectJobService struct {
	DB      *gorm.DB
	Effects *effects.Applier
	Pusher  realtime.Pusher

	now func() time.Time
}

func NewDirectJobService(db *gorm.DB, applier *effects.Applier, pusher realtime.Pusher) *DirectJobService {
	return &DirectJobService{DB: db, Effects: applier, Pusher: pusher, now: time.Now}
}

type CreateInput struct {
	ProviderID  uuid.UUID
	Title       string
	Description string
	Price       decimal.Decimal
	Address     string
	ScheduledAt *time.Time
}

// Create sends a private job request from a client to an active provider.
func (s *DirectJobService) Create(ctx context.Context, clientID uuid.UUID, in CreateInput) (*models.DirectJob, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperrors.Validation("title is required")
	}
	if !in.Price.IsPositive() {
		return nil, apperrors.Validation("price must be greater than zero")
	}

	var dj models.DirectJob
	_, err := s.Effects.Transition(ctx, s.DB, "direct_job", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, clientID)
		if err != nil {
			return "", nil, err
		}
		if !actor.IsClient() {
			return "", nil, apperrors.Forbidden("only clients can request a direct job")
		}

		var provider models.User
		if err := tx.First(&provider, "id = ?", in.ProviderID).Error; err != nil {
			return "", nil, apperrors.FromDB(err, "provider")
		}
		if provider.Role != models.RoleProvider || !provider.IsActive() {
			return "", nil, apperrors.NotFound("provider")
		}

		dj = models.DirectJob{
			ClientID:    clientID,
			ProviderID:  provider.ID,
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			Price:       in.Price,
			Address:     in.Address,
			ScheduledAt: in.ScheduledAt,
		}
		if err := tx.Create(&dj).Error; err != nil {
			return "", nil, err
		}
		return string(models.DirectJobRequested), []lifecycle.Effect{lifecycle.Notify{
			Recipient: provider.ID,
			Title:     "New job request",
			Body:      fmt.Sprintf("You received a direct request: %q.", dj.Title),
			Type:      lifecycle.TypeDirectJob,
			Link:      "/direct-jobs/" + dj.ID.String(),
			Metadata:  map[string]any{"direct_job_id": dj.ID.String()},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dj, nil
}

// Get returns a direct job visible to its two parties and admins.
func (s *DirectJobService) Get(ctx context.Context, viewerID, id uuid.UUID) (*models.DirectJob, error) {
	actor, err := effects.LoadActor(s.DB.WithContext(ctx), viewerID)
	if err != nil {
		return nil, err
	}
	var dj models.DirectJob
	if err := s.DB.WithContext(ctx).First(&dj, "id = ?", id).Error; err != nil {
		return nil, apperrors.FromDB(err, "direct job")
	}
	if !actor.IsAdmin() && dj.ClientID != viewerID && dj.ProviderID != viewerID {
		return nil, apperrors.Forbidden("access denied")
	}
	return &dj, nil
}

// ListMine returns the direct jobs where the user is client or provider.
func (s *DirectJobService) ListMine(ctx context.Context, userID uuid.UUID, status models.DirectJobStatus) ([]models.DirectJob, error) {
	q := s.DB.WithContext(ctx).Where("client_id = ? OR provider_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.DirectJob
	return out, q.Order("created_at DESC").Find(&out).Error
}

// Act runs one lifecycle action. reason is only used on decline.
func (s *DirectJobService) Act(ctx context.Context, actorID, id uuid.UUID, action lifecycle.DirectJobAction, reason string) (*models.DirectJob, error) {
	var result models.DirectJob
	_, err := s.Effects.Transition(ctx, s.DB, "direct_job", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, actorID)
		if err != nil {
			return "", nil, err
		}
		var dj models.DirectJob
		if err := effects.Lock(tx, &dj, id, "direct job"); err != nil {
			return "", nil, err
		}

		out, err := lifecycle.TransitionDirectJob(dj, action, actor, reason, s.clock())
		if err != nil {
			return "", nil, err
		}
		if err := tx.Save(&out.DirectJob).Error; err != nil {
			return "", nil, err
		}
		result = out.DirectJob
		return string(action), out.Effects, nil
	})
	if err != nil {
		return nil, err
	}

	if s.Pusher != nil {
		s.Pusher.PushToConversation(result.ClientID, result.ProviderID, EventStatus, result)
	}
	return &result, nil
}

func (s *DirectJobService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
