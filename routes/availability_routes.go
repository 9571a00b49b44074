package routes

import (
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/anjiri1684/tutor_booking/models"
	"github.com/gofiber/fiber/v2"
)

func AvailabilityRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	availability := app.Group("/availability")
	availability.Put("/", middleware.Protected(secret), middleware.RequireRole(models.RoleTutor), h.SetAvailability)
	availability.Get("/:tutorId", h.GetAvailability)
}
