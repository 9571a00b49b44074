package routes

import (
	"errors"
	"time"

	"github.com/anjiri1684/tutor_booking/handlers"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type AppConfig struct {
	Secret         string
	AllowOrigins   string
	RequestTimeout time.Duration
	AccessLog      bool
}

// NewApp builds the fiber application with the shared middleware stack and
// every route registered.
func NewApp(h *handlers.Handler, cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:       "Tutor Booking",
		CaseSensitive: true,
		StrictRouting: false,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				msg = e.Message
			} else {
				h.Log.Error("unhandled error", "path", c.Path(), "method", c.Method(), "error", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": msg})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowCredentials: cfg.AllowOrigins != "" && cfg.AllowOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		MaxAge:           86400,
	}))
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "UTC",
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	if cfg.RequestTimeout > 0 {
		app.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	Register(app, h, cfg.Secret)
	return app
}
