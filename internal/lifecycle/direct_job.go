package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

type DirectJobAction string

const (
	DirectJobAccept   DirectJobAction = "accept"
	DirectJobDecline  DirectJobAction = "decline"
	DirectJobComplete DirectJobAction = "complete"
	DirectJobCancel   DirectJobAction = "cancel"
	DirectJobPay      DirectJobAction = "pay"
)

type DirectJobOutcome struct {
	DirectJob models.DirectJob
	Effects   []Effect
}

// TransitionDirectJob applies action to dj. reason is only read on decline.
func TransitionDirectJob(dj models.DirectJob, action DirectJobAction, actor Actor, reason string, now time.Time) (DirectJobOutcome, error) {
	out := DirectJobOutcome{DirectJob: dj}
	d := &out.DirectJob

	switch action {
	case DirectJobAccept, DirectJobDecline, DirectJobComplete:
		if !actor.IsProvider() || dj.ProviderID != actor.ID {
			return DirectJobOutcome{}, apperrors.Forbidden("only the invited provider can " + string(action) + " this job")
		}
	case DirectJobCancel, DirectJobPay:
		if !actor.owns(dj.ClientID) {
			return DirectJobOutcome{}, apperrors.Forbidden("only the client can " + string(action) + " this job")
		}
	default:
		return DirectJobOutcome{}, apperrors.InvalidTransition("unknown action %q", action)
	}

	switch action {
	case DirectJobAccept:
		if err := expect(dj, models.DirectJobRequested); err != nil {
			return DirectJobOutcome{}, err
		}
		d.Status = models.DirectJobInProgress
		out.Effects = append(out.Effects, notifyDirect(dj, dj.ClientID, "Job accepted",
			fmt.Sprintf("The provider accepted %q.", dj.Title)))

	case DirectJobDecline:
		if err := expect(dj, models.DirectJobRequested); err != nil {
			return DirectJobOutcome{}, err
		}
		d.Status = models.DirectJobDeclined
		d.DeclineReason = strings.TrimSpace(reason)
		body := fmt.Sprintf("The provider declined %q.", dj.Title)
		if d.DeclineReason != "" {
			body += " Reason: " + d.DeclineReason
		}
		out.Effects = append(out.Effects, notifyDirect(dj, dj.ClientID, "Job declined", body))

	case DirectJobComplete:
		if err := expect(dj, models.DirectJobInProgress); err != nil {
			return DirectJobOutcome{}, err
		}
		d.Status = models.DirectJobCompleted
		d.CompletedAt = ptr(now)
		out.Effects = append(out.Effects,
			IncrementCompletedJobs{UserID: dj.ProviderID},
			notifyDirect(dj, dj.ClientID, "Job completed",
				fmt.Sprintf("The provider completed %q. Payment is now due.", dj.Title)),
		)

	case DirectJobCancel:
		if err := expect(dj, models.DirectJobRequested, models.DirectJobInProgress); err != nil {
			return DirectJobOutcome{}, err
		}
		d.Status = models.DirectJobCancelled
		out.Effects = append(out.Effects, notifyDirect(dj, dj.ProviderID, "Job cancelled",
			fmt.Sprintf("The client cancelled %q.", dj.Title)))

	case DirectJobPay:
		if err := expect(dj, models.DirectJobCompleted); err != nil {
			return DirectJobOutcome{}, err
		}
		if dj.PaymentStatus == models.PaymentPaid {
			return DirectJobOutcome{}, apperrors.Conflict("ALREADY_PAID", "direct job is already paid")
		}
		if !dj.Price.IsPositive() {
			return DirectJobOutcome{}, apperrors.Validation("direct job has no payable amount")
		}
		d.PaymentStatus = models.PaymentPaid
		d.PaidAt = ptr(now)
		out.Effects = append(out.Effects,
			CreditEarnings{UserID: dj.ProviderID, Amount: dj.Price, ReferenceID: dj.ID},
			RecordSpend{UserID: dj.ClientID, Amount: dj.Price, ReferenceID: dj.ID},
			notifyDirect(dj, dj.ProviderID, "Payment received",
				fmt.Sprintf("You were paid %s for %q.", dj.Price.StringFixed(2), dj.Title)),
		)
	}
	return out, nil
}

func expect(dj models.DirectJob, states ...models.DirectJobStatus) error {
	for _, s := range states {
		if dj.Status == s {
			return nil
		}
	}
	return apperrors.InvalidTransition("direct job is %s", dj.Status)
}

func notifyDirect(dj models.DirectJob, to uuid.UUID, title, body string) Notify {
	return Notify{
		Recipient: to,
		Title:     title,
		Body:      body,
		Type:      TypeDirectJob,
		Link:      "/direct-jobs/" + dj.ID.String(),
		Metadata:  map[string]any{"direct_job_id": dj.ID.String()},
	}
}
