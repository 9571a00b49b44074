package routes

import (
	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func MessagingRoutes(app *fiber.App, h *handlers.Handler, secret string) {
	dm := app.Group("/directmessage", middleware.Protected(secret))
	dm.Get("/all", h.ListDirectThreads)
	dm.Post("/", h.PostDirectMessage)
	dm.Get("/:otherId", h.GetDirectThread)

	app.Get("/ws", middleware.Protected(secret), handlers.UpgradeWs, websocket.New(h.ServeWs))
}
