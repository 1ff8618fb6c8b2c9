package lifecycle

import (
	"math"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

// Rating is a user's running review aggregate. Total is the exact sum of
// received scores so the average never accumulates rounding error.
type Rating struct {
	Average float64
	Total   int64
	Count   int64
}

// Add folds one more score into r.
func (r Rating) Add(score int) (Rating, error) {
	if score < 1 || score > 5 {
		return r, apperrors.Validation("rating must be between 1 and 5")
	}
	total := r.Total
	if total == 0 && r.Count > 0 {
		// rows written before the running total existed
		total = int64(math.Round(r.Average * float64(r.Count)))
	}
	next := Rating{Total: total + int64(score), Count: r.Count + 1}
	next.Average = round2(float64(next.Total) / float64(next.Count))
	return next, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ReviewTarget decides who actor reviews on job and in which role.
func ReviewTarget(job models.Job, actor Actor) (uuid.UUID, models.Role, error) {
	if job.Status != models.JobCompleted {
		return uuid.Nil, "", apperrors.InvalidTransition("job must be completed before it can be reviewed")
	}
	if job.AssignedProviderID == nil {
		return uuid.Nil, "", apperrors.InvalidTransition("job has no assigned provider")
	}
	switch actor.ID {
	case job.ClientID:
		return *job.AssignedProviderID, models.RoleClient, nil
	case *job.AssignedProviderID:
		return job.ClientID, models.RoleProvider, nil
	}
	return uuid.Nil, "", apperrors.Forbidden("only the job's client or assigned provider can review it")
}
