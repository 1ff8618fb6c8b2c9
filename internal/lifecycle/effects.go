package lifecycle

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

// Effect is a follow-up write requested by a transition.
type Effect interface {
	effectName() string
}

// Name returns a stable label for metrics and logs.
func Name(e Effect) string { return e.effectName() }

// Notification types carried by Notify effects.
const (
	TypeApplication = "application"
	TypeJob         = "job"
	TypeDirectJob   = "direct_job"
	TypeReport      = "report"
	TypeModeration  = "moderation"
	TypeReview      = "review"
)

// Notify queues a notification for one recipient.
type Notify struct {
	Recipient uuid.UUID
	Title     string
	Body      string
	Type      string
	Link      string
	Metadata  map[string]any
}

// SetApplicationStatus moves another application on the same job.
type SetApplicationStatus struct {
	ApplicationID uuid.UUID
	Status        models.ApplicationStatus
}

type IncrementCompletedJobs struct {
	UserID uuid.UUID
}

// DeleteConversations removes chat tied to a job. When Pair is set only the
// conversations between ClientID and ProviderID are removed.
type DeleteConversations struct {
	JobID      uuid.UUID
	Pair       bool
	ClientID   uuid.UUID
	ProviderID uuid.UUID
}

type CreditEarnings struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	ReferenceID uuid.UUID
}

type RecordSpend struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	ReferenceID uuid.UUID
}

type SetUserStatus struct {
	UserID uuid.UUID
	Status models.UserStatus
	Banned bool
}

func (Notify) effectName() string                 { return "notify" }
func (SetApplicationStatus) effectName() string   { return "set_application_status" }
func (IncrementCompletedJobs) effectName() string { return "increment_completed_jobs" }
func (DeleteConversations) effectName() string    { return "delete_conversations" }
func (CreditEarnings) effectName() string         { return "credit_earnings" }
func (RecordSpend) effectName() string            { return "record_spend" }
func (SetUserStatus) effectName() string          { return "set_user_status" }
