package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type world struct {
	client   Actor
	provider Actor
	other    Actor
	admin    Actor
	job      models.Job
	app      models.Application
	rival    models.Application
}

func newWorld() world {
	w := world{
		client:   Actor{ID: uuid.New(), Role: models.RoleClient},
		provider: Actor{ID: uuid.New(), Role: models.RoleProvider},
		other:    Actor{ID: uuid.New(), Role: models.RoleProvider},
		admin:    Actor{ID: uuid.New(), Role: models.RoleAdmin},
	}
	w.job = models.Job{ID: uuid.New(), ClientID: w.client.ID, Title: "Fix kitchen sink", Status: models.JobOpen, ApplicantCount: 2}
	w.app = models.Application{ID: uuid.New(), JobID: w.job.ID, ProviderID: w.provider.ID, Status: models.ApplicationApplied}
	w.rival = models.Application{ID: uuid.New(), JobID: w.job.ID, ProviderID: w.other.ID, Status: models.ApplicationShortlisted}
	return w
}

// hired returns the world after the provider's application was hired.
func (w world) hired() world {
	w.app.Status = models.ApplicationHired
	w.rival.Status = models.ApplicationRejected
	w.job.Status = models.JobInProgress
	w.job.AssignedProviderID = ptr(w.provider.ID)
	w.job.HiredApplicationID = ptr(w.app.ID)
	return w
}

func (w world) appCase() ApplicationCase {
	return ApplicationCase{Job: w.job, Application: w.app, Others: []models.Application{w.app, w.rival}}
}

func effectsOf[T Effect](effects []Effect) []T {
	var out []T
	for _, e := range effects {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
