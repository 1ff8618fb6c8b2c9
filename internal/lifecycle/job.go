package lifecycle

import (
	"fmt"
	"slices"
	"time"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

var jobMoves = map[models.JobStatus][]models.JobStatus{
	models.JobOpen:       {models.JobInProgress, models.JobCancelled},
	models.JobInProgress: {models.JobCompleted, models.JobCancelled},
}

// JobCase is the state a job transition decides on.
type JobCase struct {
	Job          models.Job
	Applications []models.Application
}

type JobOutcome struct {
	Job     models.Job
	Effects []Effect
}

// TransitionJob moves a job on behalf of its owner or an admin.
func TransitionJob(c JobCase, to models.JobStatus, actor Actor, now time.Time) (JobOutcome, error) {
	job := c.Job
	if !actor.owns(job.ClientID) {
		return JobOutcome{}, apperrors.Forbidden("only the job owner can change its status")
	}
	if !to.Valid() {
		return JobOutcome{}, apperrors.InvalidTransition("unknown job status %q", to)
	}

	if !slices.Contains(jobMoves[job.Status], to) {
		return JobOutcome{}, apperrors.InvalidTransition("cannot move job from %s to %s", job.Status, to)
	}

	out := JobOutcome{Job: job}
	out.Job.Status = to

	switch to {
	case models.JobInProgress:
		if job.AssignedProviderID == nil {
			return JobOutcome{}, apperrors.InvalidTransition("job has no assigned provider")
		}
	case models.JobCompleted:
		if job.AssignedProviderID == nil {
			return JobOutcome{}, apperrors.InvalidTransition("job has no assigned provider")
		}
		completeJob(&out, c.Applications, now)
	case models.JobCancelled:
		cancelJob(&out, c.Applications, now)
	}
	return out, nil
}

func completeJob(out *JobOutcome, apps []models.Application, now time.Time) {
	job := &out.Job
	provider := *job.AssignedProviderID
	job.CompletedAt = ptr(now)

	out.Effects = append(out.Effects, IncrementCompletedJobs{UserID: provider})
	for _, a := range apps {
		if a.ProviderID == provider && a.Status == models.ApplicationHired {
			out.Effects = append(out.Effects, SetApplicationStatus{ApplicationID: a.ID, Status: models.ApplicationCompleted})
		}
	}
	out.Effects = append(out.Effects,
		DeleteConversations{JobID: job.ID},
		Notify{
			Recipient: provider,
			Title:     "Job completed",
			Body:      fmt.Sprintf("The client marked %q as completed.", job.Title),
			Type:      TypeJob,
			Link:      jobLink(job.ID),
			Metadata:  map[string]any{"job_id": job.ID.String(), "job_status": string(job.Status)},
		},
	)
}

func cancelJob(out *JobOutcome, apps []models.Application, now time.Time) {
	job := &out.Job
	job.AssignedProviderID = nil
	job.HiredApplicationID = nil
	job.CancelledAt = ptr(now)

	for _, a := range apps {
		if a.Status.IsTerminal() {
			continue
		}
		out.Effects = append(out.Effects,
			SetApplicationStatus{ApplicationID: a.ID, Status: models.ApplicationRejected},
			notifyProvider(*job, a, "Job cancelled",
				fmt.Sprintf("The client cancelled %q.", job.Title)),
		)
	}
	out.Effects = append(out.Effects, DeleteConversations{JobID: job.ID})
}
