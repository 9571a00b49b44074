package handlers

import (
	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	ids, err := h.Notifications.List(c.UserContext(), caller)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{"notifications": ids})
}

// ReadNotification returns the notification and removes it from the inbox.
func (h *Handler) ReadNotification(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	id, err := parseID(c.Params("id"), apperror.NotFound("Notification not found"))
	if err != nil {
		return h.writeError(c, err, nil)
	}
	n, err := h.Notifications.Read(c.UserContext(), caller, id)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(n)
}
