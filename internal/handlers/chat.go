package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/localserve/internal/services/chat"
)

type ChatHandler struct {
	Chat *chat.ChatService
}

func NewChatHandler(svc *chat.ChatService) *ChatHandler {
	return &ChatHandler{Chat: svc}
}

func (h *ChatHandler) Routes(r fiber.Router) {
	g := r.Group("/chat")
	g.Post("/conversations", h.CreateOrGetConversation)
	g.Get("/conversations", h.GetConversations)
	g.Get("/conversations/:id/messages", h.GetMessages)
	g.Post("/conversations/:id/messages", h.SendMessage)
	g.Patch("/conversations/:id/read", h.MarkAsRead)
	g.Get("/unread", h.GetUnreadTotal)
}

type CreateConversationReq struct {
	PartnerID string `json:"partner_id" validate:"required,uuid"`
	JobID     string `json:"job_id" validate:"omitempty,uuid"`
}

type SendMessageReq struct {
	Text string `json:"text" validate:"required,max=5000"`
}

func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req CreateConversationReq
	if err := parse(c, &req); err != nil {
		return err
	}
	var jobID *uuid.UUID
	if req.JobID != "" {
		id := uuid.MustParse(req.JobID)
		jobID = &id
	}

	conv, isNew, err := h.Chat.CreateOrGet(c.UserContext(), uid, uuid.MustParse(req.PartnerID), jobID)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if isNew {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    conv,
	})
}

func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.Chat.List(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, list)
}

func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	n, err := h.Chat.UnreadTotal(c.UserContext(), uid)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"unread": n})
}

// GetMessages returns the conversation history and marks it read for the viewer.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	msgs, err := h.Chat.Messages(c.UserContext(), uid, id)
	if err != nil {
		return err
	}
	return ok(c, msgs)
}

func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Chat.MarkRead(c.UserContext(), uid, id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Marked as read",
	})
}

// SendMessage sends a message in a conversation
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req SendMessageReq
	if err := parse(c, &req); err != nil {
		return err
	}
	msg, err := h.Chat.Send(c.UserContext(), uid, id, req.Text)
	if err != nil {
		return err
	}
	return created(c, msg)
}
