package routes

import (
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/gofiber/fiber/v2"
)

func UploadRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	uploads := app.Group("/uploads", middleware.Protected(secret))
	uploads.Get("/signature", h.GenerateUploadSignature)
}
