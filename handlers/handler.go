package handlers

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/anjiri1684/tutor_booking/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Handler is the HTTP adapter over the engines.
type Handler struct {
	Appointments  *services.AppointmentService
	Messaging     *services.MessagingService
	Notifications *services.NotificationService
	Availability  *services.AvailabilityService
	Auth          *services.AuthService
	Hub           *websocket.Hub
	Uploads       *UploadSigner

	SessionTTL    time.Duration
	SecureCookies bool
	Log           *logger.Logger
}

// statusOverride remaps an error kind to a different status for one route.
type statusOverride map[apperror.Kind]int

func (h *Handler) writeError(c *fiber.Ctx, err error, overrides statusOverride) error {
	kind := apperror.KindOf(err)
	status := apperror.Status(kind)
	if s, ok := overrides[kind]; ok {
		status = s
	}
	if kind == apperror.KindInternal {
		h.Log.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": apperror.Message(err)})
}

// parseBody enforces a JSON content type, decodes into dst and validates it.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if !c.Is("json") {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "Content-Type must be application/json")
	}
	if err := c.BodyParser(dst); err != nil {
		return apperror.BadRequest("Cannot parse JSON")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.BadRequest("Invalid or missing field: " + verrs[0].Field())
		}
		return apperror.BadRequest(err.Error())
	}
	return nil
}

// bodyError renders errors from parseBody.
func (h *Handler) bodyError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return h.writeError(c, err, nil)
}

func currentCaller(c *fiber.Ctx) (services.Caller, error) {
	caller, ok := middleware.Current(c)
	if !ok {
		return services.Caller{}, apperror.Unauthenticated("No user is logged in")
	}
	return caller, nil
}

func parseID(raw string, notValid *apperror.Error) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, notValid
	}
	return id, nil
}

func success(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true})
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
