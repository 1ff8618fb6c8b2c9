package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/localserve/internal/services/notification"
)

type NotificationHandler struct {
	Notifications *notification.NotificationService
}

func NewNotificationHandler(svc *notification.NotificationService) *NotificationHandler {
	return &NotificationHandler{Notifications: svc}
}

func (h *NotificationHandler) Routes(r fiber.Router) {
	g := r.Group("/notifications")
	g.Get("/", h.List)
	g.Get("/unread-count", h.UnreadCount)
	g.Patch("/read-all", h.MarkAllRead)
	g.Patch("/:id/read", h.MarkRead)
	g.Delete("/", h.DeleteAll)
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pageQuery(c)
	list, total, err := h.Notifications.List(c.UserContext(), uid, c.QueryBool("unread", false), page, limit)
	if err != nil {
		return err
	}
	return okPage(c, list, page, limit, total)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.Notifications.UnreadCount(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"unread": n})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.Notifications.MarkRead(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return ok(c, n)
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.Notifications.MarkAllRead(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"updated": n})
}

func (h *NotificationHandler) DeleteAll(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.Notifications.DeleteAll(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"deleted": n})
}
