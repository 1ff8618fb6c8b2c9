package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/lifecycle"
	"github.com/Windi-Fikriyansyah/localserve/internal/middleware"
	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/moderation"
)

type ReportHandler struct {
	Reports *moderation.ReportService
}

func NewReportHandler(svc *moderation.ReportService) *ReportHandler {
	return &ReportHandler{Reports: svc}
}

func (h *ReportHandler) Routes(r fiber.Router) {
	r.Post("/reports", h.Create)

	admin := r.Group("/admin", middleware.RequireRoles("admin"))
	admin.Get("/reports", h.List)
	admin.Patch("/reports/:id", h.Resolve)
}

type CreateReportReq struct {
	ReportedUserID string `json:"reported_user_id" validate:"required,uuid"`
	Reason         string `json:"reason" validate:"required,max=100"`
	Description    string `json:"description" validate:"max=5000"`
}

type ResolveReportReq struct {
	Status  string `json:"status" validate:"required,oneof=resolved rejected"`
	Action  string `json:"action_taken" validate:"omitempty,oneof=warning suspend ban"`
	Message string `json:"admin_message" validate:"max=2000"`
}

func (h *ReportHandler) Create(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateReportReq
	if err := parse(c, &req); err != nil {
		return err
	}
	rep, err := h.Reports.Create(c.UserContext(), uid, moderation.CreateInput{
		ReportedUserID: uuid.MustParse(req.ReportedUserID),
		Reason:         req.Reason,
		Description:    req.Description,
	})
	if err != nil {
		return err
	}
	return created(c, rep)
}

func (h *ReportHandler) List(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pageQuery(c)
	list, total, err := h.Reports.List(c.UserContext(), uid, models.ReportStatus(c.Query("status")), page, limit)
	if err != nil {
		return err
	}
	return okPage(c, list, page, limit, total)
}

func (h *ReportHandler) Resolve(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req ResolveReportReq
	if err := parse(c, &req); err != nil {
		return err
	}
	rep, err := h.Reports.Resolve(c.UserContext(), uid, id, lifecycle.Resolution{
		Status:  models.ReportStatus(req.Status),
		Action:  models.ReportAction(req.Action),
		Message: req.Message,
	})
	if err != nil {
		return err
	}
	return ok(c, rep)
}
