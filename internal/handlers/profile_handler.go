package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/Windi-Fikriyansyah/localserve/internal/middleware"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/user"
)

type ProfileHandler struct {
	Users *user.UserService
}

func NewProfileHandler(svc *user.UserService) *ProfileHandler {
	return &ProfileHandler{Users: svc}
}

func (h *ProfileHandler) Routes(r fiber.Router) {
	r.Get("/me", h.Me)
	r.Patch("/me/profile", h.UpdateProfile)
	r.Get("/provider/dashboard/stats", middleware.RequireRoles("provider"), h.DashboardStats)
}

type UpdateProfileReq struct {
	Name       *string          `json:"name" validate:"omitempty,max=100"`
	Phone      *string          `json:"phone" validate:"omitempty,max=30"`
	Bio        *string          `json:"bio" validate:"omitempty,max=5000"`
	Skills     *[]string        `json:"skills" validate:"omitempty,max=30,dive,max=50"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	Address    *string          `json:"address"`
	City       *string          `json:"city" validate:"omitempty,max=100"`
	Latitude   *float64         `json:"latitude" validate:"omitempty,latitude"`
	Longitude  *float64         `json:"longitude" validate:"omitempty,longitude"`
}

func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	u, err := h.Users.Me(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, u)
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req UpdateProfileReq
	if err := parse(c, &req); err != nil {
		return err
	}
	u, err := h.Users.UpdateProfile(c.UserContext(), uid, user.ProfileInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Bio:        req.Bio,
		Skills:     req.Skills,
		HourlyRate: req.HourlyRate,
		Address:    req.Address,
		City:       req.City,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		return err
	}
	return ok(c, u)
}

// DashboardStats returns the provider dashboard summary.
func (h *ProfileHandler) DashboardStats(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	st, err := h.Users.ProviderStats(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, st)
}
