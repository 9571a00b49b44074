package routes

import (
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func NotificationRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	notifications := app.Group("/notifications", middleware.Protected(secret))
	notifications.Get("/", h.ListNotifications)
	notifications.Get("/:id", h.ReadNotification)
}
