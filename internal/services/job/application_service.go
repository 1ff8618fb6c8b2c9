package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
)

// ApplicationResult is an application together with its job after a transition.
type ApplicationResult struct {
	Application models.Application `json:"application"`
	Job         models.Job         `json:"job"`
}

type ApplyInput struct {
	CoverLetter  string
	ProposedRate decimal.Decimal
}

// Apply creates the provider's application on an open job.
func (s *JobService) Apply(ctx context.Context, providerID, jobID uuid.UUID, in ApplyInput) (*models.Application, error) {
	if in.ProposedRate.IsNegative() {
		return nil, apperrors.Validation("proposed rate cannot be negative")
	}

	var app models.Application
	_, err := s.Effects.Transition(ctx, s.DB, "application", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, providerID)
		if err != nil {
			return "", nil, err
		}
		if !actor.IsProvider() {
			return "", nil, apperrors.Forbidden("only providers can apply")
		}

		var job models.Job
		if err := effects.Lock(tx, &job, jobID, "job"); err != nil {
			return "", nil, err
		}
		if job.Status != models.JobOpen {
			return "", nil, apperrors.InvalidTransition("job is %s and not accepting applications", job.Status)
		}
		if job.ClientID == providerID {
			return "", nil, apperrors.Forbidden("cannot apply to your own job")
		}

		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("job_id = ? AND provider_id = ?", jobID, providerID).
			Count(&existing).Error; err != nil {
			return "", nil, err
		}
		if existing > 0 {
			return "", nil, errAlreadyApplied
		}

		app = models.Application{
			JobID:        jobID,
			ProviderID:   providerID,
			CoverLetter:  strings.TrimSpace(in.CoverLetter),
			ProposedRate: in.ProposedRate,
			Status:       models.ApplicationApplied,
		}
		if err := tx.Create(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return "", nil, errAlreadyApplied
			}
			return "", nil, err
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", jobID).
			Update("applicant_count", gorm.Expr("applicant_count + 1")).Error; err != nil {
			return "", nil, err
		}

		return string(models.ApplicationApplied), []lifecycle.Effect{lifecycle.Notify{
			Recipient: job.ClientID,
			Title:     "New application",
			Body:      fmt.Sprintf("A provider applied to %q.", job.Title),
			Type:      lifecycle.TypeApplication,
			Link:      "/jobs/" + job.ID.String(),
			Metadata: map[string]any{
				"job_id":         job.ID.String(),
				"application_id": app.ID.String(),
			},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

var errAlreadyApplied = apperrors.Conflict("ALREADY_APPLIED", "you already applied to this job")

// UpdateApplicationStatus moves an application on behalf of the applicant, the job owner or an admin.
func (s *JobService) UpdateApplicationStatus(ctx context.Context, actorID, appID uuid.UUID, to models.ApplicationStatus) (*ApplicationResult, error) {
	return s.transitionApplication(ctx, actorID, to, func(tx *gorm.DB) (uuid.UUID, error) {
		return appID, nil
	})
}

// WithdrawApplication is the provider's shortcut for moving to withdrawn.
func (s *JobService) WithdrawApplication(ctx context.Context, providerID, appID uuid.UUID) (*ApplicationResult, error) {
	return s.UpdateApplicationStatus(ctx, providerID, appID, models.ApplicationWithdrawn)
}

// Assign hires providerID on jobID through the provider's existing application.
func (s *JobService) Assign(ctx context.Context, actorID, jobID, providerID uuid.UUID) (*ApplicationResult, error) {
	return s.transitionApplication(ctx, actorID, models.ApplicationHired, func(tx *gorm.DB) (uuid.UUID, error) {
		var app models.Application
		if err := tx.Where("job_id = ? AND provider_id = ?", jobID, providerID).First(&app).Error; err != nil {
			return uuid.Nil, apperrors.FromDB(err, "application")
		}
		switch app.Status {
		case models.ApplicationApplied, models.ApplicationShortlisted, models.ApplicationHired:
			return app.ID, nil
		}
		return uuid.Nil, apperrors.InvalidTransition("application is %s and cannot be hired", app.Status)
	})
}

// transitionApplication is the single path for every application move,
// including hires made through Assign.
func (s *JobService) transitionApplication(ctx context.Context, actorID uuid.UUID, to models.ApplicationStatus, resolve func(tx *gorm.DB) (uuid.UUID, error)) (*ApplicationResult, error) {
	var result ApplicationResult
	_, err := s.Effects.Transition(ctx, s.DB, "application", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, actorID)
		if err != nil {
			return "", nil, err
		}
		appID, err := resolve(tx)
		if err != nil {
			return "", nil, err
		}

		var app models.Application
		if err := tx.First(&app, "id = ?", appID).Error; err != nil {
			return "", nil, apperrors.FromDB(err, "application")
		}
		// job row lock serializes concurrent hires on the same job
		var job models.Job
		if err := effects.Lock(tx, &job, app.JobID, "job"); err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return "", nil, apperrors.InvalidTransition("job of application no longer exists")
			}
			return "", nil, err
		}
		// reload after the lock so a hire that committed meanwhile is visible
		if err := tx.First(&app, "id = ?", appID).Error; err != nil {
			return "", nil, apperrors.FromDB(err, "application")
		}
		var others []models.Application
		if err := tx.Where("job_id = ? AND id <> ?", job.ID, app.ID).Find(&others).Error; err != nil {
			return "", nil, err
		}

		out, err := lifecycle.TransitionApplication(lifecycle.ApplicationCase{Job: job, Application: app, Others: others}, to, actor, s.clock())
		if err != nil {
			return "", nil, err
		}
		if err := tx.Save(&out.Job).Error; err != nil {
			return "", nil, err
		}
		if err := tx.Save(&out.Application).Error; err != nil {
			return "", nil, err
		}
		result = ApplicationResult{Application: out.Application, Job: out.Job}
		return string(to), out.Effects, nil
	})
	if err != nil {
		return nil, err
	}

	if s.Pusher != nil {
		s.Pusher.PushToUser(result.Application.ProviderID, EventApplicationStatus, result.Application)
		s.Pusher.PushToUser(result.Job.ClientID, EventApplicationStatus, result.Application)
	}
	return &result, nil
}

// ApplicantView is an application with a summary of its provider.
type ApplicantView struct {
	models.Application
	ProviderName   string  `json:"provider_name"`
	ProviderRating float64 `json:"provider_rating"`
	ProviderCity   string  `json:"provider_city"`
}

// ListApplicationsForJob lists the applications on a job for its owner or an admin.
func (s *JobService) ListApplicationsForJob(ctx context.Context, actorID, jobID uuid.UUID) ([]ApplicantView, error) {
	actor, err := effects.LoadActor(s.DB.WithContext(ctx), actorID)
	if err != nil {
		return nil, err
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && job.ClientID != actor.ID {
		return nil, apperrors.Forbidden("only the job owner can see its applications")
	}

	var apps []models.Application
	if err := s.DB.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ProviderID)
	}
	providers := map[uuid.UUID]models.User{}
	if len(ids) > 0 {
		var users []models.User
		if err := s.DB.WithContext(ctx).Select("id", "name", "rating", "city").Find(&users, "id IN ?", ids).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			providers[u.ID] = u
		}
	}

	out := make([]ApplicantView, 0, len(apps))
	for _, a := range apps {
		p := providers[a.ProviderID]
		out = append(out, ApplicantView{Application: a, ProviderName: p.Name, ProviderRating: p.Rating, ProviderCity: p.City})
	}
	return out, nil
}

// MyApplication is an application with the job it targets.
type MyApplication struct {
	models.Application
	JobTitle  string           `json:"job_title"`
	JobStatus models.JobStatus `json:"job_status"`
}

// ListMyApplications lists the provider's applications, newest first.
func (s *JobService) ListMyApplications(ctx context.Context, providerID uuid.UUID, status models.ApplicationStatus) ([]MyApplication, error) {
	q := s.DB.WithContext(ctx).Where("provider_id = ?", providerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var apps []models.Application
	if err := q.Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.JobID)
	}
	jobs := map[uuid.UUID]models.Job{}
	if len(ids) > 0 {
		var rows []models.Job
		if err := s.DB.WithContext(ctx).Select("id", "title", "status").Find(&rows, "id IN ?", ids).Error; err != nil {
			return nil, err
		}
		for _, j := range rows {
			jobs[j.ID] = j
		}
	}

	out := make([]MyApplication, 0, len(apps))
	for _, a := range apps {
		j := jobs[a.JobID]
		out = append(out, MyApplication{Application: a, JobTitle: j.Title, JobStatus: j.Status})
	}
	return out, nil
}
