package handlers

import (
	"time"

	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=student tutor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	user, err := h.Auth.Register(c.UserContext(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.Role(req.Role),
	})
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login verifies credentials and sets the session cookie.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	session, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	h.setSessionCookie(c, session.Token, session.ExpiresAt)
	return c.JSON(session.User)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	h.setSessionCookie(c, "", time.Unix(0, 0))
	return success(c)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	user, err := h.Auth.Me(c.UserContext(), caller)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(user)
}

func (h *Handler) setSessionCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
