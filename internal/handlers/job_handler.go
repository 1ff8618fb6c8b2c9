package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/localserve/internal/middleware"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/job"
)

type JobHandler struct {
	Jobs *job.JobService
}

func NewJobHandler(jobs *job.JobService) *JobHandler {
	return &JobHandler{Jobs: jobs}
}

func (h *JobHandler) PublicRoutes(r fiber.Router) {
	r.Get("/jobs", h.List)
	r.Get("/jobs/:id<guid>", h.Get)
}

func (h *JobHandler) Routes(r fiber.Router) {
	g := r.Group("/jobs")
	g.Post("/", middleware.RequireRoles("client"), h.Create)
	g.Get("/mine", middleware.RequireRoles("client"), h.ListMine)
	g.Get("/recommended", middleware.RequireRoles("provider"), h.Recommended)
	g.Patch("/:id/status", h.UpdateStatus)
	g.Post("/:id/assign", h.Assign)
	g.Post("/:id/applications", middleware.RequireRoles("provider"), h.Apply)
	g.Get("/:id/applications", h.Applications)

	a := r.Group("/applications")
	a.Get("/mine", middleware.RequireRoles("provider"), h.MyApplications)
	a.Patch("/:id/status", h.UpdateApplicationStatus)
	a.Post("/:id/withdraw", middleware.RequireRoles("provider"), h.Withdraw)
}

type CreateJobReq struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Category    string          `json:"category" validate:"max=100"`
	Budget      decimal.Decimal `json:"budget"`
	Skills      []string        `json:"skills" validate:"max=20,dive,max=50"`
	Address     string          `json:"address"`
	City        string          `json:"city" validate:"max=100"`
	Latitude    *float64        `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64        `json:"longitude" validate:"omitempty,longitude"`
}

type StatusReq struct {
	Status string `json:"status" validate:"required"`
}

type AssignReq struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
}

type ApplyReq struct {
	CoverLetter  string          `json:"cover_letter" validate:"max=5000"`
	ProposedRate decimal.Decimal `json:"proposed_rate"`
}

func (h *JobHandler) Create(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateJobReq
	if err := parse(c, &req); err != nil {
		return err
	}

	j, err := h.Jobs.CreateJob(c.UserContext(), uid, job.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Budget:      req.Budget,
		Skills:      req.Skills,
		Address:     req.Address,
		City:        req.City,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		return err
	}
	return created(c, j)
}

func (h *JobHandler) List(c *fiber.Ctx) error {
	page, limit := pageQuery(c)
	jobs, total, err := h.Jobs.ListJobs(c.UserContext(), job.JobFilter{
		Status:   models.JobStatus(c.Query("status")),
		Category: c.Query("category"),
		City:     c.Query("city"),
		Q:        c.Query("q"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	return okPage(c, jobs, page, limit, total)
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	j, err := h.Jobs.GetJob(c.UserContext(), id)
	if err != nil {
		return err
	}
	return ok(c, j)
}

func (h *JobHandler) ListMine(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	jobs, err := h.Jobs.ListMyJobs(c.UserContext(), uid, models.JobStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return ok(c, jobs)
}

func (h *JobHandler) Recommended(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	recs, err := h.Jobs.Recommend(c.UserContext(), uid, c.QueryFloat("radius_km", 0), c.QueryInt("limit", 20))
	if err != nil {
		return err
	}
	return ok(c, recs)
}

func (h *JobHandler) UpdateStatus(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req StatusReq
	if err := parse(c, &req); err != nil {
		return err
	}
	j, err := h.Jobs.TransitionJob(c.UserContext(), uid, id, models.JobStatus(req.Status))
	if err != nil {
		return err
	}
	return ok(c, j)
}

func (h *JobHandler) Assign(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req AssignReq
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.Jobs.Assign(c.UserContext(), uid, id, uuid.MustParse(req.ProviderID))
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *JobHandler) Apply(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req ApplyReq
	if err := parse(c, &req); err != nil {
		return err
	}
	app, err := h.Jobs.Apply(c.UserContext(), uid, id, job.ApplyInput{
		CoverLetter:  req.CoverLetter,
		ProposedRate: req.ProposedRate,
	})
	if err != nil {
		return err
	}
	return created(c, app)
}

func (h *JobHandler) Applications(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	apps, err := h.Jobs.ListApplicationsForJob(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return ok(c, apps)
}

func (h *JobHandler) MyApplications(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	apps, err := h.Jobs.ListMyApplications(c.UserContext(), uid, models.ApplicationStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return ok(c, apps)
}

func (h *JobHandler) UpdateApplicationStatus(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req StatusReq
	if err := parse(c, &req); err != nil {
		return err
	}
	res, err := h.Jobs.UpdateApplicationStatus(c.UserContext(), uid, id, models.ApplicationStatus(req.Status))
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *JobHandler) Withdraw(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Jobs.WithdrawApplication(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return ok(c, res)
}
