package routes

import (
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(app *fiber.App) {
	app.Get("/health", handlers.Health)
}

// Register wires every area onto app.
func Register(app *fiber.App, h *handlers.Handler, secret string) {
	PublicRoutes(app)
	AuthRoutes(app, h, secret)
	AppointmentRoutes(app, h, secret)
	MessagingRoutes(app, h, secret)
	NotificationRoutes(app, h, secret)
	AvailabilityRoutes(app, h, secret)
	UploadRoutes(app, h, secret)
}
