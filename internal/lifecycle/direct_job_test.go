package lifecycle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

func newDirectJob(w world, status models.DirectJobStatus) models.DirectJob {
	return models.DirectJob{
		ID:            uuid.New(),
		ClientID:      w.client.ID,
		ProviderID:    w.provider.ID,
		Title:         "Paint bedroom",
		Price:         decimal.RequireFromString("250000"),
		Status:        status,
		PaymentStatus: models.PaymentPending,
	}
}

func TestDirectJobActions(t *testing.T) {
	w := newWorld()

	tests := []struct {
		name   string
		from   models.DirectJobStatus
		action DirectJobAction
		actor  Actor
		want   models.DirectJobStatus
		kind   apperrors.Kind
	}{
		{"provider accepts", models.DirectJobRequested, DirectJobAccept, w.provider, models.DirectJobInProgress, apperrors.KindInternal},
		{"provider declines", models.DirectJobRequested, DirectJobDecline, w.provider, models.DirectJobDeclined, apperrors.KindInternal},
		{"provider completes", models.DirectJobInProgress, DirectJobComplete, w.provider, models.DirectJobCompleted, apperrors.KindInternal},
		{"client cancels request", models.DirectJobRequested, DirectJobCancel, w.client, models.DirectJobCancelled, apperrors.KindInternal},
		{"client cancels running", models.DirectJobInProgress, DirectJobCancel, w.client, models.DirectJobCancelled, apperrors.KindInternal},
		{"admin cancels", models.DirectJobInProgress, DirectJobCancel, w.admin, models.DirectJobCancelled, apperrors.KindInternal},
		{"client cannot accept", models.DirectJobRequested, DirectJobAccept, w.client, "", apperrors.KindForbidden},
		{"other provider cannot accept", models.DirectJobRequested, DirectJobAccept, w.other, "", apperrors.KindForbidden},
		{"provider cannot cancel", models.DirectJobRequested, DirectJobCancel, w.provider, "", apperrors.KindForbidden},
		{"cannot complete requested", models.DirectJobRequested, DirectJobComplete, w.provider, "", apperrors.KindInvalidTransition},
		{"cannot accept declined", models.DirectJobDeclined, DirectJobAccept, w.provider, "", apperrors.KindInvalidTransition},
		{"cannot cancel completed", models.DirectJobCompleted, DirectJobCancel, w.client, "", apperrors.KindInvalidTransition},
		{"cannot pay before completion", models.DirectJobInProgress, DirectJobPay, w.client, "", apperrors.KindInvalidTransition},
		{"unknown action", models.DirectJobRequested, DirectJobAction("snooze"), w.provider, "", apperrors.KindInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := TransitionDirectJob(newDirectJob(w, tt.from), tt.action, tt.actor, "too far", now)
			if tt.kind == apperrors.KindInternal {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out.DirectJob.Status)
				assert.NotEmpty(t, effectsOf[Notify](out.Effects))
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestDirectJobDeclineKeepsReason(t *testing.T) {
	w := newWorld()
	out, err := TransitionDirectJob(newDirectJob(w, models.DirectJobRequested), DirectJobDecline, w.provider, "  fully booked ", now)
	require.NoError(t, err)
	assert.Equal(t, "fully booked", out.DirectJob.DeclineReason)
	assert.Contains(t, effectsOf[Notify](out.Effects)[0].Body, "fully booked")
}

func TestDirectJobCompleteStampsTime(t *testing.T) {
	w := newWorld()
	out, err := TransitionDirectJob(newDirectJob(w, models.DirectJobInProgress), DirectJobComplete, w.provider, "", now)
	require.NoError(t, err)
	require.NotNil(t, out.DirectJob.CompletedAt)
	assert.Equal(t, now, *out.DirectJob.CompletedAt)
	assert.Equal(t, []IncrementCompletedJobs{{UserID: w.provider.ID}}, effectsOf[IncrementCompletedJobs](out.Effects))
}

func TestDirectJobPayOnce(t *testing.T) {
	w := newWorld()
	dj := newDirectJob(w, models.DirectJobCompleted)

	out, err := TransitionDirectJob(dj, DirectJobPay, w.client, "", now)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, out.DirectJob.PaymentStatus)
	require.NotNil(t, out.DirectJob.PaidAt)

	credits := effectsOf[CreditEarnings](out.Effects)
	require.Len(t, credits, 1)
	assert.Equal(t, w.provider.ID, credits[0].UserID)
	assert.True(t, dj.Price.Equal(credits[0].Amount))

	spends := effectsOf[RecordSpend](out.Effects)
	require.Len(t, spends, 1)
	assert.Equal(t, w.client.ID, spends[0].UserID)

	_, err = TransitionDirectJob(out.DirectJob, DirectJobPay, w.client, "", now)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestDirectJobPayNeedsClientOrAdmin(t *testing.T) {
	w := newWorld()
	dj := newDirectJob(w, models.DirectJobCompleted)

	_, err := TransitionDirectJob(dj, DirectJobPay, w.provider, "", now)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = TransitionDirectJob(dj, DirectJobPay, w.admin, "", now)
	assert.NoError(t, err)
}
