package lifecycle

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

// Moves available to the provider who owns the application.
var providerMoves = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationApplied:     {models.ApplicationWithdrawn},
	models.ApplicationShortlisted: {models.ApplicationWithdrawn},
	models.ApplicationHired:       {models.ApplicationCompleted, models.ApplicationWithdrawn},
}

// Moves available to the job owner and admins. Completion requires a hire first.
var ownerMoves = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationApplied:     {models.ApplicationShortlisted, models.ApplicationHired, models.ApplicationRejected},
	models.ApplicationShortlisted: {models.ApplicationHired, models.ApplicationRejected},
	models.ApplicationHired:       {models.ApplicationCompleted},
}

// ApplicationCase is the state an application transition decides on.
type ApplicationCase struct {
	Job         models.Job
	Application models.Application
	// Others holds the remaining applications on the same job.
	Others []models.Application
}

type ApplicationOutcome struct {
	Job         models.Job
	Application models.Application
	Effects     []Effect
}

// TransitionApplication moves c.Application to the target status on behalf of actor.
func TransitionApplication(c ApplicationCase, to models.ApplicationStatus, actor Actor, now time.Time) (ApplicationOutcome, error) {
	job, app := c.Job, c.Application
	if app.JobID != job.ID {
		return ApplicationOutcome{}, apperrors.InvalidTransition("application does not belong to job %s", job.ID)
	}

	var moves, otherMoves map[models.ApplicationStatus][]models.ApplicationStatus
	switch {
	case actor.IsProvider():
		if app.ProviderID != actor.ID {
			return ApplicationOutcome{}, apperrors.Forbidden("only the applicant can change this application")
		}
		moves, otherMoves = providerMoves, ownerMoves
	case actor.owns(job.ClientID):
		moves, otherMoves = ownerMoves, providerMoves
	default:
		return ApplicationOutcome{}, apperrors.Forbidden("only the job owner can change this application")
	}

	if !slices.Contains(moves[app.Status], to) {
		if to == models.ApplicationHired && !actor.IsProvider() && alreadyHired(job, app) {
			return resyncHire(job, app), nil
		}
		// the move exists, just not for this side
		if slices.Contains(otherMoves[app.Status], to) {
			return ApplicationOutcome{}, apperrors.Forbidden(fmt.Sprintf("%s cannot move application from %s to %s", actor.Role, app.Status, to))
		}
		return ApplicationOutcome{}, apperrors.InvalidTransition("cannot move application from %s to %s", app.Status, to)
	}

	if to == models.ApplicationHired && alreadyHired(job, app) {
		return resyncHire(job, app), nil
	}

	out := ApplicationOutcome{Job: job, Application: app}
	out.Application.Status = to

	switch to {
	case models.ApplicationShortlisted:
		out.Effects = append(out.Effects, notifyProvider(job, app, "You've been shortlisted",
			fmt.Sprintf("The client shortlisted your application for %q.", job.Title)))
	case models.ApplicationRejected:
		out.Effects = append(out.Effects, notifyProvider(job, app, "Application rejected",
			fmt.Sprintf("Your application for %q was not accepted.", job.Title)))
	case models.ApplicationHired:
		if job.Status != models.JobOpen || job.AssignedProviderID != nil {
			return ApplicationOutcome{}, apperrors.InvalidTransition("job is %s and cannot hire", job.Status)
		}
		hire(&out, c.Others)
	case models.ApplicationWithdrawn:
		withdraw(&out)
	case models.ApplicationCompleted:
		if job.Status != models.JobInProgress {
			return ApplicationOutcome{}, apperrors.InvalidTransition("job is %s and cannot be completed", job.Status)
		}
		completeFromApplication(&out, actor, now)
	}
	return out, nil
}

// alreadyHired is true when the job is already running with this provider.
func alreadyHired(job models.Job, app models.Application) bool {
	if job.AssignedProviderID == nil || *job.AssignedProviderID != app.ProviderID {
		return false
	}
	return job.Status == models.JobOpen || job.Status == models.JobInProgress
}

// resyncHire repeats a hire without side effects.
func resyncHire(job models.Job, app models.Application) ApplicationOutcome {
	app.Status = models.ApplicationHired
	job.Status = models.JobInProgress
	job.HiredApplicationID = ptr(app.ID)
	return ApplicationOutcome{Job: job, Application: app}
}

func hire(out *ApplicationOutcome, others []models.Application) {
	app := out.Application
	out.Job.Status = models.JobInProgress
	out.Job.AssignedProviderID = ptr(app.ProviderID)
	out.Job.HiredApplicationID = ptr(app.ID)

	for _, o := range others {
		if o.ID == app.ID || o.Status.IsTerminal() {
			continue
		}
		out.Effects = append(out.Effects,
			SetApplicationStatus{ApplicationID: o.ID, Status: models.ApplicationRejected},
			notifyProvider(out.Job, o, "Application not selected",
				fmt.Sprintf("Another provider was hired for %q.", out.Job.Title)),
		)
	}
	out.Effects = append(out.Effects, notifyProvider(out.Job, app, "You've been hired",
		fmt.Sprintf("Your application for %q was accepted.", out.Job.Title)))
}

func withdraw(out *ApplicationOutcome) {
	job, app := &out.Job, out.Application

	if job.ApplicantCount > 0 {
		job.ApplicantCount--
	}
	wasHired := job.HiredApplicationID != nil && *job.HiredApplicationID == app.ID
	if wasHired || (job.AssignedProviderID != nil && *job.AssignedProviderID == app.ProviderID) {
		job.AssignedProviderID = nil
		job.HiredApplicationID = nil
		if job.Status == models.JobInProgress {
			job.Status = models.JobOpen
		}
	}

	out.Effects = append(out.Effects,
		DeleteConversations{JobID: job.ID, Pair: true, ClientID: job.ClientID, ProviderID: app.ProviderID},
		Notify{
			Recipient: job.ClientID,
			Title:     "Application withdrawn",
			Body:      fmt.Sprintf("A provider withdrew from %q.", job.Title),
			Type:      TypeApplication,
			Link:      jobLink(job.ID),
			Metadata:  applicationMeta(*job, app),
		},
	)
}

func completeFromApplication(out *ApplicationOutcome, actor Actor, now time.Time) {
	job, app := &out.Job, out.Application
	job.Status = models.JobCompleted
	job.CompletedAt = ptr(now)

	out.Effects = append(out.Effects,
		IncrementCompletedJobs{UserID: app.ProviderID},
		DeleteConversations{JobID: job.ID},
	)

	body := fmt.Sprintf("%q has been marked as completed.", job.Title)
	if actor.IsProvider() || actor.IsAdmin() {
		out.Effects = append(out.Effects, Notify{
			Recipient: job.ClientID,
			Title:     "Job completed",
			Body:      body,
			Type:      TypeJob,
			Link:      jobLink(job.ID),
			Metadata:  applicationMeta(*job, app),
		})
	}
	if !actor.IsProvider() {
		out.Effects = append(out.Effects, notifyProvider(*job, app, "Job completed", body))
	}
}

func notifyProvider(job models.Job, app models.Application, title, body string) Notify {
	return Notify{
		Recipient: app.ProviderID,
		Title:     title,
		Body:      body,
		Type:      TypeApplication,
		Link:      jobLink(job.ID),
		Metadata:  applicationMeta(job, app),
	}
}

func applicationMeta(job models.Job, app models.Application) map[string]any {
	return map[string]any{
		"job_id":         job.ID.String(),
		"application_id": app.ID.String(),
		"job_status":     string(job.Status),
	}
}

func jobLink(id uuid.UUID) string {
	return "/jobs/" + id.String()
}

func ptr[T any](v T) *T {
	return &v
}
