package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
)

type ReviewService struct {
	DB      *gorm.DB
	Effects *effects.Applier
}

func NewReviewService(db *gorm.DB, applier *effects.Applier) *ReviewService {
	return &ReviewService{DB: db, Effects: applier}
}

var errAlreadyReviewed = apperrors.Conflict("ALREADY_REVIEWED", "this job was already reviewed from your side")

// Create records a review on a completed job and folds it into the reviewee's rating.
func (s *ReviewService) Create(ctx context.Context, reviewerID, jobID uuid.UUID, rating int, comment string) (*models.Review, error) {
	var rev models.Review
	_, err := s.Effects.Transition(ctx, s.DB, "review", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, reviewerID)
		if err != nil {
			return "", nil, err
		}
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return "", nil, apperrors.FromDB(err, "job")
		}
		revieweeID, role, err := lifecycle.ReviewTarget(job, actor)
		if err != nil {
			return "", nil, err
		}

		var existing int64
		if err := tx.Model(&models.Review{}).
			Where("job_id = ? AND reviewer_role = ?", jobID, role).
			Count(&existing).Error; err != nil {
			return "", nil, err
		}
		if existing > 0 {
			return "", nil, errAlreadyReviewed
		}

		var reviewee models.User
		if err := effects.Lock(tx, &reviewee, revieweeID, "user"); err != nil {
			return "", nil, err
		}
		next, err := lifecycle.Rating{
			Average: reviewee.Rating,
			Total:   reviewee.RatingTotal,
			Count:   reviewee.TotalRatings,
		}.Add(rating)
		if err != nil {
			return "", nil, err
		}

		rev = models.Review{
			JobID:        jobID,
			ReviewerRole: role,
			ReviewerID:   actor.ID,
			RevieweeID:   revieweeID,
			Rating:       rating,
			Comment:      strings.TrimSpace(comment),
		}
		if err := tx.Create(&rev).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return "", nil, errAlreadyReviewed
			}
			return "", nil, err
		}

		// partial update: concurrent profile edits must not be overwritten
		if err := tx.Model(&models.User{}).Where("id = ?", revieweeID).Updates(map[string]interface{}{
			"rating":        next.Average,
			"rating_total":  next.Total,
			"total_ratings": next.Count,
		}).Error; err != nil {
			return "", nil, err
		}

		return "created", []lifecycle.Effect{lifecycle.Notify{
			Recipient: revieweeID,
			Title:     "New review",
			Body:      fmt.Sprintf("You received a %d-star review for %q.", rating, job.Title),
			Type:      lifecycle.TypeReview,
			Link:      "/jobs/" + job.ID.String(),
			Metadata:  map[string]any{"job_id": job.ID.String(), "rating": rating},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// ListForUser returns the reviews a user received, newest first.
func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Review, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	q := s.DB.WithContext(ctx).Model(&models.Review{}).Where("reviewee_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Review
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, err
}
