package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/db"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/metrics"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
)

type pushed struct {
	user  uuid.UUID
	event string
}

type recorder struct {
	mu   sync.Mutex
	sent []pushed
}

func (r *recorder) PushToUser(userID uuid.UUID, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, pushed{userID, event})
}

func (r *recorder) PushToConversation(a, b uuid.UUID, event string, payload any) {
	r.PushToUser(a, event, payload)
	r.PushToUser(b, event, payload)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func setup(t *testing.T) (*gorm.DB, *NotificationService, *recorder) {
	t.Helper()
	gdb := db.OpenTest(t)
	rec := &recorder{}
	return gdb, NewNotificationService(gdb, rec), rec
}

func note(user uuid.UUID, title string) lifecycle.Notify {
	return lifecycle.Notify{
		Recipient: user,
		Title:     title,
		Body:      "body",
		Type:      lifecycle.TypeJob,
		Link:      "/jobs/1",
		Metadata:  map[string]any{"jobId": "1"},
	}
}

func TestNotifyStoresAndPushes(t *testing.T) {
	_, svc, rec := setup(t)
	ctx := context.Background()
	user := uuid.New()

	n, err := svc.Notify(ctx, note(user, "Hello"))
	require.NoError(t, err)
	assert.Equal(t, user, n.UserID)
	assert.JSONEq(t, `{"jobId":"1"}`, string(n.Metadata))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, EventNew, rec.sent[0].event)
}

func TestReadStateOperations(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()
	user, other := uuid.New(), uuid.New()

	var first *models.Notification
	for i := 0; i < 3; i++ {
		n, err := svc.Notify(ctx, note(user, "n"))
		require.NoError(t, err)
		if first == nil {
			first = n
		}
	}
	_, err := svc.Notify(ctx, note(other, "other"))
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	_, err = svc.MarkRead(ctx, other, first.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound), "cannot read someone else's notification")

	got, err := svc.MarkRead(ctx, user, first.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	unread, total, err := svc.List(ctx, user, true, 1, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
	assert.EqualValues(t, 2, total)

	n, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	deleted, err := svc.DeleteAll(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	left, err := svc.UnreadCount(ctx, other)
	require.NoError(t, err)
	assert.EqualValues(t, 1, left)
}

func newDispatcher(gdb *gorm.DB, svc *NotificationService, reg *prometheus.Registry, now time.Time) *Dispatcher {
	d := NewDispatcher(gdb, svc, metrics.NewCollector(reg), time.Second, 3)
	d.now = func() time.Time { return now }
	return d
}

func TestEnqueueIsTransactional(t *testing.T) {
	gdb, _, _ := setup(t)
	user := uuid.New()

	err := gdb.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, Enqueue(tx, note(user, "lost")))
		return errors.New("rollback")
	})
	require.Error(t, err)

	var n int64
	gdb.Model(&models.OutboxEvent{}).Count(&n)
	assert.Zero(t, n)
}

func TestDispatchDeliversOnce(t *testing.T) {
	gdb, svc, rec := setup(t)
	ctx := context.Background()
	user := uuid.New()
	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return Enqueue(tx, note(user, "Hired"))
	}))

	reg := prometheus.NewRegistry()
	d := newDispatcher(gdb, svc, reg, time.Now().Add(time.Second))
	n, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	var notes []models.Notification
	require.NoError(t, gdb.Find(&notes, "user_id = ?", user).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Hired", notes[0].Title)
	assert.Equal(t, 1, rec.count())

	var ev models.OutboxEvent
	require.NoError(t, gdb.First(&ev).Error)
	assert.Equal(t, models.OutboxDelivered, ev.Status)
	assert.Equal(t, 1, ev.Attempts)
	assert.NotNil(t, ev.DeliveredAt)
	expected := `
# HELP marketplace_outbox_delivered_total Total number of outbox events delivered
# TYPE marketplace_outbox_delivered_total counter
marketplace_outbox_delivered_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "marketplace_outbox_delivered_total"))
}

func TestDispatchRetriesThenDies(t *testing.T) {
	gdb, svc, rec := setup(t)
	ctx := context.Background()
	require.NoError(t, Enqueue(gdb, note(uuid.New(), "flaky")))

	// every notification insert fails
	require.NoError(t, gdb.Callback().Create().Before("gorm:create").Register("test:fail_notifications", func(tx *gorm.DB) {
		if tx.Statement.Table == "notifications" {
			tx.AddError(errors.New("insert refused"))
		}
	}))

	now := time.Now().Add(time.Second)
	d := newDispatcher(gdb, svc, prometheus.NewRegistry(), now)

	var ev models.OutboxEvent
	for attempt := 1; attempt <= 3; attempt++ {
		n, err := d.DispatchOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, gdb.First(&ev).Error)
		assert.Equal(t, attempt, ev.Attempts)
		assert.Equal(t, "insert refused", ev.LastError)
		if attempt < 3 {
			assert.Equal(t, models.OutboxPending, ev.Status)
			assert.True(t, ev.NextAttemptAt.After(now), "backoff pushes the next attempt out")
			// jump past the backoff window
			now = ev.NextAttemptAt.Add(time.Millisecond)
			d.now = func() time.Time { return now }
		}
	}
	assert.Equal(t, models.OutboxDead, ev.Status)
	assert.Zero(t, rec.count())

	var notes int64
	gdb.Model(&models.Notification{}).Count(&notes)
	assert.Zero(t, notes, "failed attempts leave no partial notification")
}

func TestMalformedPayloadIsDeadImmediately(t *testing.T) {
	gdb, svc, _ := setup(t)
	ev := models.OutboxEvent{Kind: models.OutboxKindNotification, RecipientID: uuid.New(), Payload: []byte(`{"body":"no title"}`)}
	require.NoError(t, gdb.Create(&ev).Error)

	d := newDispatcher(gdb, svc, prometheus.NewRegistry(), time.Now().Add(time.Second))
	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, gdb.First(&ev, "id = ?", ev.ID).Error)
	assert.Equal(t, models.OutboxDead, ev.Status)
	assert.Equal(t, 1, ev.Attempts)
}

func TestRetryDeadEvent(t *testing.T) {
	gdb, svc, _ := setup(t)
	ctx := context.Background()
	ev := models.OutboxEvent{Kind: models.OutboxKindNotification, RecipientID: uuid.New(), Payload: []byte(`{"title":"t"}`), Status: models.OutboxDead, Attempts: 5}
	require.NoError(t, gdb.Create(&ev).Error)

	d := newDispatcher(gdb, svc, prometheus.NewRegistry(), time.Now().Add(time.Second))

	dead, err := d.Events(ctx, models.OutboxDead, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	require.NoError(t, d.Retry(ctx, ev.ID))
	assert.True(t, apperrors.Is(d.Retry(ctx, ev.ID), apperrors.KindNotFound), "only dead events can be retried")

	n, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	d := &Dispatcher{BaseBackoff: time.Second}
	assert.Equal(t, time.Second, d.backoff(1))
	assert.Equal(t, 2*time.Second, d.backoff(2))
	assert.Equal(t, 8*time.Second, d.backoff(4))
	assert.Equal(t, maxBackoff, d.backoff(40))
}
