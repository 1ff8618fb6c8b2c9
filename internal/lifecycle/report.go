package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

// Resolution is an admin decision on a pending report.
type Resolution struct {
	Status  models.ReportStatus
	Action  models.ReportAction
	Message string
}

type ReportOutcome struct {
	Report  models.Report
	Effects []Effect
}

// ResolveReport closes a pending report and applies the optional action to
// the reported user.
func ResolveReport(r models.Report, res Resolution, actor Actor, now time.Time) (ReportOutcome, error) {
	if !actor.IsAdmin() {
		return ReportOutcome{}, apperrors.Forbidden("only admins can resolve reports")
	}
	if r.Status != models.ReportPending {
		return ReportOutcome{}, apperrors.InvalidTransition("report is already %s", r.Status)
	}
	if res.Status != models.ReportResolved && res.Status != models.ReportRejected {
		return ReportOutcome{}, apperrors.InvalidTransition("cannot move report to %q", res.Status)
	}

	msg := strings.TrimSpace(res.Message)
	out := ReportOutcome{Report: r}
	rep := &out.Report
	rep.Status = res.Status
	rep.ActionTaken = res.Action
	rep.AdminMessage = msg
	rep.ResolvedBy = ptr(actor.ID)
	rep.ResolvedAt = ptr(now)

	switch res.Action {
	case models.ReportActionNone:
	case models.ReportActionWarning:
		if msg == "" {
			return ReportOutcome{}, apperrors.Validation("a warning needs a message")
		}
		out.Effects = append(out.Effects, Notify{
			Recipient: r.ReportedUserID,
			Title:     "Warning from moderation",
			Body:      msg,
			Type:      TypeModeration,
			Metadata:  map[string]any{"report_id": r.ID.String()},
		})
	case models.ReportActionSuspend:
		out.Effects = append(out.Effects, SetUserStatus{UserID: r.ReportedUserID, Status: models.UserSuspended})
	case models.ReportActionBan:
		out.Effects = append(out.Effects, SetUserStatus{UserID: r.ReportedUserID, Status: models.UserBanned, Banned: true})
	default:
		return ReportOutcome{}, apperrors.Validation(fmt.Sprintf("unknown action %q", res.Action))
	}

	body := fmt.Sprintf("Your report was %s.", res.Status)
	if res.Action != models.ReportActionNone {
		body = fmt.Sprintf("Your report was %s and the user received a %s.", res.Status, actionNoun(res.Action))
	}
	out.Effects = append(out.Effects, Notify{
		Recipient: r.ReporterID,
		Title:     "Report reviewed",
		Body:      body,
		Type:      TypeReport,
		Metadata:  map[string]any{"report_id": r.ID.String(), "status": string(res.Status)},
	})
	return out, nil
}

func actionNoun(a models.ReportAction) string {
	switch a {
	case models.ReportActionSuspend:
		return "suspension"
	case models.ReportActionBan:
		return "ban"
	default:
		return string(a)
	}
}
