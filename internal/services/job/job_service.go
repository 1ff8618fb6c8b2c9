package job

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/localserve/internal/apperrors"
	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/realtime"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/effects"
	"github.com/Windi-Fikriyansyah/localserve/internal/utils"
)

// Events pushed after a committed lifecycle change.
const (
	EventJobStatus         = "job:status"
	EventApplicationStatus = "application:status"
)

const defaultRadiusKm = 25

type JobService struct {
	DB      *gorm.DB
	Effects *effects.Applier
	Pusher  realtime.Pusher

	now func() time.Time
}

func NewJobService(db *gorm.DB, applier *effects.Applier, pusher realtime.Pusher) *JobService {
	return &JobService{DB: db, Effects: applier, Pusher: pusher, now: time.Now}
}

func (s *JobService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

type CreateJobInput struct {
	Title       string
	Description string
	Category    string
	Budget      decimal.Decimal
	Skills      []string
	Address     string
	City        string
	Latitude    *float64
	Longitude   *float64
}

// CreateJob posts a new open job for a client.
func (s *JobService) CreateJob(ctx context.Context, clientID uuid.UUID, in CreateJobInput) (*models.Job, error) {
	actor, err := effects.LoadActor(s.DB.WithContext(ctx), clientID)
	if err != nil {
		return nil, err
	}
	if !actor.IsClient() {
		return nil, apperrors.Forbidden("only clients can post jobs")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperrors.Validation("title is required")
	}
	if in.Budget.IsNegative() {
		return nil, apperrors.Validation("budget cannot be negative")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, apperrors.Validation("latitude and longitude must be set together")
	}

	job := models.Job{
		ClientID:    clientID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Budget:      in.Budget,
		Skills:      normalizeSkills(in.Skills),
		Address:     in.Address,
		City:        in.City,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Status:      models.JobOpen,
	}
	if err := s.DB.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := s.DB.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, apperrors.FromDB(err, "job")
	}
	return &job, nil
}

type JobFilter struct {
	Status   models.JobStatus
	Category string
	City     string
	Q        string
	Page     int
	Limit    int
}

// ListJobs lists the public job board. Without a status filter only open jobs are shown.
func (s *JobService) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, int64, error) {
	page, limit := paging(f.Page, f.Limit)
	status := f.Status
	if status == "" {
		status = models.JobOpen
	}
	if !status.Valid() {
		return nil, 0, apperrors.Validation("unknown status filter")
	}

	q := s.DB.WithContext(ctx).Model(&models.Job{}).Where("status = ?", status)
	if f.Category != "" {
		q = q.Where("category = ?", strings.ToLower(f.Category))
	}
	if f.City != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(f.City))
	}
	if term := strings.TrimSpace(f.Q); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var jobs []models.Job
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&jobs).Error
	return jobs, total, err
}

// ListMyJobs lists every job the client posted, optionally filtered by status.
func (s *JobService) ListMyJobs(ctx context.Context, clientID uuid.UUID, status models.JobStatus) ([]models.Job, error) {
	q := s.DB.WithContext(ctx).Where("client_id = ?", clientID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var jobs []models.Job
	return jobs, q.Order("created_at DESC").Find(&jobs).Error
}

// Categories returns the distinct categories that currently have open jobs.
func (s *JobService) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := s.DB.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND category <> ''", models.JobOpen).
		Distinct().
		Order("category").
		Pluck("category", &cats).Error
	return cats, err
}

type Recommendation struct {
	Job           models.Job `json:"job"`
	DistanceKm    float64    `json:"distance_km"`
	MatchedSkills []string   `json:"matched_skills"`
}

// Recommend returns open jobs within radiusKm of the provider, nearest first.
// When both the provider and a job list skills, at least one must overlap.
func (s *JobService) Recommend(ctx context.Context, providerID uuid.UUID, radiusKm float64, limit int) ([]Recommendation, error) {
	var provider models.User
	if err := s.DB.WithContext(ctx).First(&provider, "id = ?", providerID).Error; err != nil {
		return nil, apperrors.FromDB(err, "user")
	}
	if provider.Role != models.RoleProvider {
		return nil, apperrors.Forbidden("recommendations are for providers")
	}
	if provider.Latitude == nil || provider.Longitude == nil {
		return nil, apperrors.Validation("set your location to get recommendations")
	}
	if radiusKm <= 0 {
		radiusKm = defaultRadiusKm
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	lat, lng := *provider.Latitude, *provider.Longitude
	// rough bounding box, refined by haversine below
	dLat := radiusKm / 111.0
	var candidates []models.Job
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", models.JobOpen).
		Where("latitude BETWEEN ? AND ?", lat-dLat, lat+dLat).
		Where("client_id <> ?", providerID).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	mine := normalizeSkills(provider.Skills)
	out := make([]Recommendation, 0, len(candidates))
	for _, job := range candidates {
		d := utils.HaversineKm(lat, lng, *job.Latitude, *job.Longitude)
		if d > radiusKm {
			continue
		}
		matched := overlap(mine, job.Skills)
		if len(mine) > 0 && len(job.Skills) > 0 && len(matched) == 0 {
			continue
		}
		out = append(out, Recommendation{Job: job, DistanceKm: round1(d), MatchedSkills: matched})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return len(out[i].MatchedSkills) > len(out[j].MatchedSkills)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TransitionJob moves a job on behalf of its owner or an admin.
func (s *JobService) TransitionJob(ctx context.Context, actorID, jobID uuid.UUID, to models.JobStatus) (*models.Job, error) {
	var result models.Job
	var previous *uuid.UUID
	_, err := s.Effects.Transition(ctx, s.DB, "job", func(tx *gorm.DB) (string, []lifecycle.Effect, error) {
		actor, err := effects.LoadActor(tx, actorID)
		if err != nil {
			return "", nil, err
		}
		var job models.Job
		if err := effects.Lock(tx, &job, jobID, "job"); err != nil {
			return "", nil, err
		}
		previous = job.AssignedProviderID
		var apps []models.Application
		if err := tx.Where("job_id = ?", job.ID).Find(&apps).Error; err != nil {
			return "", nil, err
		}

		out, err := lifecycle.TransitionJob(lifecycle.JobCase{Job: job, Applications: apps}, to, actor, s.clock())
		if err != nil {
			return "", nil, err
		}
		if err := tx.Save(&out.Job).Error; err != nil {
			return "", nil, err
		}
		result = out.Job
		return string(to), out.Effects, nil
	})
	if err != nil {
		return nil, err
	}
	s.pushJob(&result, previous)
	return &result, nil
}

// pushJob tells the client and the provider about a job change. previous is
// the provider assigned before the change, who still hears about a cancel.
func (s *JobService) pushJob(job *models.Job, previous *uuid.UUID) {
	if s.Pusher == nil {
		return
	}
	s.Pusher.PushToUser(job.ClientID, EventJobStatus, job)
	if job.AssignedProviderID != nil {
		s.Pusher.PushToUser(*job.AssignedProviderID, EventJobStatus, job)
	}
	if previous != nil && (job.AssignedProviderID == nil || *previous != *job.AssignedProviderID) {
		s.Pusher.PushToUser(*previous, EventJobStatus, job)
	}
}

func paging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func normalizeSkills(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func overlap(mine, theirs []string) []string {
	var out []string
	for _, s := range normalizeSkills(theirs) {
		for _, m := range mine {
			if s == m {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
