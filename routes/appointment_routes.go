package routes

import (
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func AppointmentRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	protected := middleware.Protected(secret)

	appointment := app.Group("/appointment")
	appointment.Post("/request", protected, h.RequestAppointment)
	appointment.Put("/accept", protected, h.AcceptAppointment)
	appointment.Post("/rating", protected, h.RateAppointment)
	appointment.Post("/message", protected, h.PostAppointmentMessage)
	appointment.Put("/", protected, h.ModifyAppointment)
	appointment.Delete("/", protected, h.DeleteAppointment)
	appointment.Get("/:id/messages", protected, h.GetAppointmentMessages)
	appointment.Get("/:id", middleware.OptionalSession(secret), h.GetAppointment)

	app.Get("/appointments", protected, h.ListAppointments)
}
