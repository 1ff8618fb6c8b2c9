package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/services/review"
)

type ReviewHandler struct {
	Reviews *review.ReviewService
}

func NewReviewHandler(svc *review.ReviewService) *ReviewHandler {
	return &ReviewHandler{Reviews: svc}
}

func (h *ReviewHandler) PublicRoutes(r fiber.Router) {
	r.Get("/users/:id<guid>/reviews", h.ListForUser)
}

func (h *ReviewHandler) Routes(r fiber.Router) {
	r.Post("/reviews", h.Create)
}

type CreateReviewReq struct {
	JobID   string `json:"job_id" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateReviewReq
	if err := parse(c, &req); err != nil {
		return err
	}
	rev, err := h.Reviews.Create(c.UserContext(), uid, uuid.MustParse(req.JobID), req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return created(c, rev)
}

func (h *ReviewHandler) ListForUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	page, limit := pageQuery(c)
	list, total, err := h.Reviews.ListForUser(c.UserContext(), id, page, limit)
	if err != nil {
		return err
	}
	return okPage(c, list, page, limit, total)
}
