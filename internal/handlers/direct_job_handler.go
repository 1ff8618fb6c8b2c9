package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/middleware"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/directjob"
)

type DirectJobHandler struct {
	DirectJobs *directjob.DirectJobService
}

func NewDirectJobHandler(svc *directjob.DirectJobService) *DirectJobHandler {
	return &DirectJobHandler{DirectJobs: svc}
}

func (h *DirectJobHandler) Routes(r fiber.Router) {
	g := r.Group("/direct-jobs")
	g.Post("/", middleware.RequireRoles("client"), h.Create)
	g.Get("/", h.ListMine)
	g.Get("/:id", h.Get)
	for _, a := range []lifecycle.DirectJobAction{
		lifecycle.DirectJobAccept,
		lifecycle.DirectJobDecline,
		lifecycle.DirectJobComplete,
		lifecycle.DirectJobCancel,
		lifecycle.DirectJobPay,
	} {
		g.Post("/:id/"+string(a), h.act(a))
	}
}

type CreateDirectJobReq struct {
	ProviderID  string          `json:"provider_id" validate:"required,uuid"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Address     string          `json:"address"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
}

type ActionReq struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (h *DirectJobHandler) Create(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateDirectJobReq
	if err := parse(c, &req); err != nil {
		return err
	}
	dj, err := h.DirectJobs.Create(c.UserContext(), uid, directjob.CreateInput{
		ProviderID:  uuid.MustParse(req.ProviderID),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Address:     req.Address,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return err
	}
	return created(c, dj)
}

func (h *DirectJobHandler) ListMine(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	out, err := h.DirectJobs.ListMine(c.UserContext(), uid, models.DirectJobStatus(c.Query("status")))
	if err != nil {
		return err
	}
	return ok(c, out)
}

func (h *DirectJobHandler) Get(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	dj, err := h.DirectJobs.Get(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return ok(c, dj)
}

func (h *DirectJobHandler) act(action lifecycle.DirectJobAction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := currentUser(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var req ActionReq
		if len(c.Body()) > 0 {
			if err := parse(c, &req); err != nil {
				return err
			}
		}
		dj, err := h.DirectJobs.Act(c.UserContext(), uid, id, action, req.Reason)
		if err != nil {
			return err
		}
		return ok(c, dj)
	}
}
