package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/db"
	"github.com/Windi-Fikriyansyah/localserve/internal/metrics"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/wallet"
)

type fixture struct {
	db     *gorm.DB
	svc    *JobService
	ctx    context.Context
	client models.User
	p1, p2 models.User
	admin  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := db.OpenTest(t)
	applier := effects.NewApplier(wallet.NewWalletService(gdb), metrics.NewCollector(prometheus.NewRegistry()))
	f := &fixture{
		db:  gdb,
		svc: NewJobService(gdb, applier, nil),
		ctx: context.Background(),
	}
	f.client = f.user(t, "client", models.RoleClient)
	f.p1 = f.user(t, "p1", models.RoleProvider)
	f.p2 = f.user(t, "p2", models.RoleProvider)
	f.admin = f.user(t, "admin", models.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) models.User {
	t.Helper()
	u := models.User{Name: name, Email: name + "@x.io", Password: "x", Role: role}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

func (f *fixture) job(t *testing.T) *models.Job {
	t.Helper()
	job, err := f.svc.CreateJob(f.ctx, f.client.ID, CreateJobInput{
		Title:    "Fix leaking sink",
		Category: "Plumbing",
		Budget:   decimal.NewFromInt(250000),
		Skills:   []string{"plumbing"},
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) apply(t *testing.T, jobID uuid.UUID, p models.User) *models.Application {
	t.Helper()
	app, err := f.svc.Apply(f.ctx, p.ID, jobID, ApplyInput{CoverLetter: "I can do it", ProposedRate: decimal.NewFromInt(200000)})
	require.NoError(t, err)
	return app
}

func (f *fixture) reload(t *testing.T, dest interface{}, id uuid.UUID) {
	t.Helper()
	require.NoError(t, f.db.First(dest, "id = ?", id).Error)
}

func (f *fixture) conversation(t *testing.T, jobID uuid.UUID, p models.User) {
	t.Helper()
	conv := models.Conversation{ClientID: f.client.ID, ProviderID: p.ID, JobID: &jobID}
	require.NoError(t, f.db.Create(&conv).Error)
	require.NoError(t, f.db.Create(&models.Message{ConversationID: conv.ID, SenderID: p.ID, Text: "hi"}).Error)
}

func (f *fixture) outboxFor(userID uuid.UUID) int64 {
	var n int64
	f.db.Model(&models.OutboxEvent{}).Where("recipient_id = ?", userID).Count(&n)
	return n
}

func TestHireThenComplete(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)
	a2 := f.apply(t, job.ID, f.p2)
	f.conversation(t, job.ID, f.p1)
	f.conversation(t, job.ID, f.p2)

	f.reload(t, job, job.ID)
	assert.Equal(t, 2, job.ApplicantCount)
	assert.EqualValues(t, 2, f.outboxFor(f.client.ID), "client hears about each application")

	res, err := f.svc.UpdateApplicationStatus(f.ctx, f.client.ID, a1.ID, models.ApplicationHired)
	require.NoError(t, err)
	assert.Equal(t, models.JobInProgress, res.Job.Status)
	require.NotNil(t, res.Job.AssignedProviderID)
	assert.Equal(t, f.p1.ID, *res.Job.AssignedProviderID)
	assert.Equal(t, a1.ID, *res.Job.HiredApplicationID)

	f.reload(t, a2, a2.ID)
	assert.Equal(t, models.ApplicationRejected, a2.Status)
	assert.EqualValues(t, 1, f.outboxFor(f.p1.ID))
	assert.EqualValues(t, 1, f.outboxFor(f.p2.ID))

	res, err = f.svc.UpdateApplicationStatus(f.ctx, f.p1.ID, a1.ID, models.ApplicationCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, res.Job.Status)
	assert.NotNil(t, res.Job.CompletedAt)

	var p1 models.User
	f.reload(t, &p1, f.p1.ID)
	assert.EqualValues(t, 1, p1.CompletedJobs)

	var convs int64
	f.db.Model(&models.Conversation{}).Where("job_id = ?", job.ID).Count(&convs)
	assert.Zero(t, convs)
	assert.EqualValues(t, 3, f.outboxFor(f.client.ID), "provider completion notifies the client")
}

func TestWithdrawHiredReopensJob(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)
	f.conversation(t, job.ID, f.p1)

	_, err := f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p1.ID)
	require.NoError(t, err)

	res, err := f.svc.WithdrawApplication(f.ctx, f.p1.ID, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, res.Application.Status)
	assert.Equal(t, models.JobOpen, res.Job.Status)
	assert.Nil(t, res.Job.AssignedProviderID)
	assert.Nil(t, res.Job.HiredApplicationID)
	assert.Zero(t, res.Job.ApplicantCount)

	var convs int64
	f.db.Model(&models.Conversation{}).Count(&convs)
	assert.Zero(t, convs)

	// the reopened job can hire someone else
	a2 := f.apply(t, job.ID, f.p2)
	_, err = f.svc.UpdateApplicationStatus(f.ctx, f.client.ID, a2.ID, models.ApplicationHired)
	require.NoError(t, err)
}

func TestAtMostOneHire(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	f.apply(t, job.ID, f.p1)
	a2 := f.apply(t, job.ID, f.p2)

	_, err := f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p1.ID)
	require.NoError(t, err)

	// a2 was rejected by the first hire
	_, err = f.svc.UpdateApplicationStatus(f.ctx, f.client.ID, a2.ID, models.ApplicationHired)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition), "got %v", err)

	// repeating the same hire is a no-op
	res, err := f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobInProgress, res.Job.Status)

	var hired int64
	f.db.Model(&models.Application{}).Where("job_id = ? AND status = ?", job.ID, models.ApplicationHired).Count(&hired)
	assert.EqualValues(t, 1, hired)
}

func TestConcurrentHiresSerialize(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)
	a2 := f.apply(t, job.ID, f.p2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{a1.ID, a2.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateApplicationStatus(f.ctx, f.client.ID, id, models.ApplicationHired)
		}(i, id)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition), "got %v", err)
		}
	}
	assert.Equal(t, 1, ok)

	var hired int64
	f.db.Model(&models.Application{}).Where("job_id = ? AND status = ?", job.ID, models.ApplicationHired).Count(&hired)
	assert.EqualValues(t, 1, hired)
}

func TestApplyGuards(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	f.apply(t, job.ID, f.p1)

	_, err := f.svc.Apply(f.ctx, f.p1.ID, job.ID, ApplyInput{})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = f.svc.Apply(f.ctx, f.client.ID, job.ID, ApplyInput{})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = f.svc.Apply(f.ctx, f.p2.ID, uuid.New(), ApplyInput{})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.TransitionJob(f.ctx, f.client.ID, job.ID, models.JobCancelled)
	require.NoError(t, err)
	_, err = f.svc.Apply(f.ctx, f.p2.ID, job.ID, ApplyInput{})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))
}

func TestAssignNeedsApplication(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)

	_, err := f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p2.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.WithdrawApplication(f.ctx, f.p1.ID, a1.ID)
	require.NoError(t, err)
	_, err = f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p1.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))

	// only the owner may assign
	f.apply(t, job.ID, f.p2)
	_, err = f.svc.Assign(f.ctx, f.p1.ID, job.ID, f.p2.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestJobCompletionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)
	_, err := f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p1.ID)
	require.NoError(t, err)

	done, err := f.svc.TransitionJob(f.ctx, f.client.ID, job.ID, models.JobCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status)

	_, err = f.svc.TransitionJob(f.ctx, f.admin.ID, job.ID, models.JobCompleted)
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))

	var p1 models.User
	f.reload(t, &p1, f.p1.ID)
	assert.EqualValues(t, 1, p1.CompletedJobs)
	f.reload(t, a1, a1.ID)
	assert.Equal(t, models.ApplicationCompleted, a1.Status)
}

func TestCancelRejectsOpenApplications(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)
	a2 := f.apply(t, job.ID, f.p2)

	_, err := f.svc.TransitionJob(f.ctx, f.p1.ID, job.ID, models.JobCancelled)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = f.svc.TransitionJob(f.ctx, f.client.ID, job.ID, "archived")
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidTransition))

	res, err := f.svc.TransitionJob(f.ctx, f.client.ID, job.ID, models.JobCancelled)
	require.NoError(t, err)
	assert.NotNil(t, res.CancelledAt)

	for _, a := range []*models.Application{a1, a2} {
		f.reload(t, a, a.ID)
		assert.Equal(t, models.ApplicationRejected, a.Status)
	}
}

func TestBannedActorCannotTransition(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.client.ID).
		Updates(map[string]interface{}{"status": models.UserBanned, "is_banned": true}).Error)

	_, err := f.svc.UpdateApplicationStatus(f.ctx, f.client.ID, a1.ID, models.ApplicationHired)
	assert.ErrorIs(t, err, apperrors.ErrAccountInactive)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	_, err := f.svc.CreateJob(f.ctx, f.client.ID, CreateJobInput{Title: "Paint wall", Category: "painting"})
	require.NoError(t, err)
	f.apply(t, job.ID, f.p1)

	jobs, total, err := f.svc.ListJobs(f.ctx, JobFilter{Q: "sink"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, job.ID, jobs[0].ID)

	cats, err := f.svc.Categories(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"painting", "plumbing"}, cats)

	mine, err := f.svc.ListMyJobs(f.ctx, f.client.ID, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	views, err := f.svc.ListApplicationsForJob(f.ctx, f.client.ID, job.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "p1", views[0].ProviderName)

	_, err = f.svc.ListApplicationsForJob(f.ctx, f.p2.ID, job.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	my, err := f.svc.ListMyApplications(f.ctx, f.p1.ID, "")
	require.NoError(t, err)
	require.Len(t, my, 1)
	assert.Equal(t, "Fix leaking sink", my[0].JobTitle)

	_, err = f.svc.CreateJob(f.ctx, f.p1.ID, CreateJobInput{Title: "x"})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestRecommendByDistanceAndSkills(t *testing.T) {
	f := newFixture(t)
	// Jakarta Monas
	lat, lng := -6.1754, 106.8272
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.p1.ID).Updates(map[string]interface{}{
		"latitude": lat, "longitude": lng, "skills": `["plumbing","electrical"]`,
	}).Error)

	mk := func(title string, dLat float64, skills ...string) uuid.UUID {
		la, lo := lat+dLat, lng
		j, err := f.svc.CreateJob(f.ctx, f.client.ID, CreateJobInput{Title: title, Skills: skills, Latitude: &la, Longitude: &lo})
		require.NoError(t, err)
		return j.ID
	}
	mk("far", 1.0, "plumbing")
	near := mk("near", 0.01, "plumbing")
	// no skills listed, so any provider matches
	mid := mk("mid", 0.05)
	mk("wrong skill", 0.02, "gardening")

	recs, err := f.svc.Recommend(f.ctx, f.p1.ID, 10, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, near, recs[0].Job.ID)
	assert.Equal(t, []string{"plumbing"}, recs[0].MatchedSkills)
	assert.Equal(t, mid, recs[1].Job.ID)
	assert.InDelta(t, 5.6, recs[1].DistanceKm, 0.2)

	_, err = f.svc.Recommend(f.ctx, f.p2.ID, 10, 10)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation), "provider without location")
}

func TestClockIsUsedForTimestamps(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }
	job := f.job(t)
	f.apply(t, job.ID, f.p1)
	_, err := f.svc.Assign(f.ctx, f.client.ID, job.ID, f.p1.ID)
	require.NoError(t, err)

	done, err := f.svc.TransitionJob(f.ctx, f.client.ID, job.ID, models.JobCompleted)
	require.NoError(t, err)
	assert.True(t, done.CompletedAt.Equal(fixed))
}

type pushes struct {
	mu sync.Mutex
	to map[uuid.UUID][]string
}

func (p *pushes) PushToUser(userID uuid.UUID, event string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.to == nil {
		p.to = map[uuid.UUID][]string{}
	}
	p.to[userID] = append(p.to[userID], event)
}

func (p *pushes) PushToConversation(a, b uuid.UUID, event string, payload any) {
	p.PushToUser(a, event, payload)
	p.PushToUser(b, event, payload)
}

func TestCancelPushesToFormerProvider(t *testing.T) {
	f := newFixture(t)
	job := f.job(t)
	a1 := f.apply(t, job.ID, f.p1)
	_, err := f.svc.UpdateApplicationStatus(f.ctx, f.client.ID, a1.ID, models.ApplicationHired)
	require.NoError(t, err)

	rec := &pushes{}
	f.svc.Pusher = rec
	res, err := f.svc.TransitionJob(f.ctx, f.client.ID, job.ID, models.JobCancelled)
	require.NoError(t, err)
	assert.Nil(t, res.AssignedProviderID)

	assert.Equal(t, []string{EventJobStatus}, rec.to[f.client.ID])
	assert.Equal(t, []string{EventJobStatus}, rec.to[f.p1.ID])
	assert.Empty(t, rec.to[f.p2.ID])
}
