package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/localserve/internal/models"
	"github.com/Windi-Fikriyansyah/localserve/internal/services/auth"
	"github.com/Windi-Fikriyansyah/localserve/internal/utils"
)

type AuthHandler struct {
	Auth    *auth.AuthService
	Expires int
	Secure  bool
}

func NewAuthHandler(svc *auth.AuthService, expiresMin int, secure bool) *AuthHandler {
	return &AuthHandler{Auth: svc, Expires: expiresMin, Secure: secure}
}

func (h *AuthHandler) Routes(r fiber.Router) {
	g := r.Group("/auth")
	g.Post("/register", h.Register)
	g.Post("/login", h.Login)
	g.Post("/logout", h.Logout)
}

type RegisterReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,min=8,max=30"`
	Role     string `json:"role" validate:"omitempty,oneof=client provider"` // admin jangan dari publik
}

type LoginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterReq
	if err := parse(c, &req); err != nil {
		return err
	}

	sess, err := h.Auth.Register(c.UserContext(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		return err
	}

	setSessionCookie(c, sess.Token, h.Expires, h.Secure)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Register berhasil",
		"data":    sessionBody(sess),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := parse(c, &req); err != nil {
		return err
	}

	sess, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	setSessionCookie(c, sess.Token, h.Expires, h.Secure)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login berhasil",
		"data":    sessionBody(sess),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     utils.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // hapus cookie
		HTTPOnly: true,
		Secure:   h.Secure,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout berhasil",
	})
}

func setSessionCookie(c *fiber.Ctx, token string, expiresMin int, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     utils.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
		MaxAge:   expiresMin * 60,
	})
}

// sessionBody also returns the token for clients that cannot hold cookies.
func sessionBody(sess *auth.Session) fiber.Map {
	return fiber.Map{
		"token": sess.Token,
		"user": fiber.Map{
			"id":    sess.User.ID,
			"name":  sess.User.Name,
			"email": sess.User.Email,
			"phone": sess.User.Phone,
			"role":  sess.User.Role,
		},
	}
}
