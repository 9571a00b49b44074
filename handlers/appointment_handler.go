package handlers

import (
	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/gofiber/fiber/v2"
)

type RequestAppointmentRequest struct {
	TutorID   string `json:"tutorId" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

type AcceptAppointmentRequest struct {
	ID     string `json:"id" validate:"required"`
	Accept *bool  `json:"accept" validate:"required"`
}

type ModifyAppointmentRequest struct {
	ID        string `json:"id" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

type AppointmentIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type RateAppointmentRequest struct {
	ID     string `json:"id" validate:"required"`
	Rating *int   `json:"rating" validate:"required"`
}

var (
	errAppointmentNotFound = apperror.NotFound("Appointment not found")
	errInvalidAppointment  = apperror.BadRequest("Invalid appointment id")
)

func (h *Handler) RequestAppointment(c *fiber.Ctx) error {
	// A missing tutor or a non-student caller is reported as a bad request.
	overrides := statusOverride{
		apperror.KindNotFound:  fiber.StatusBadRequest,
		apperror.KindForbidden: fiber.StatusBadRequest,
	}
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req RequestAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	tutorID, err := parseID(req.TutorID, apperror.BadRequest("Invalid tutorId"))
	if err != nil {
		return h.writeError(c, err, nil)
	}

	appt, err := h.Appointments.Request(c.UserContext(), caller, tutorID, req.StartTime, req.EndTime)
	if err != nil {
		return h.writeError(c, err, overrides)
	}
	return c.JSON(appt)
}

func (h *Handler) AcceptAppointment(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req AcceptAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	id, err := parseID(req.ID, errInvalidAppointment)
	if err != nil {
		return h.writeError(c, err, nil)
	}

	appt, err := h.Appointments.Accept(c.UserContext(), caller, id, *req.Accept)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(appt)
}

func (h *Handler) ModifyAppointment(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req ModifyAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	id, err := parseID(req.ID, errAppointmentNotFound)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	if err := h.Appointments.Modify(c.UserContext(), caller, id, req.StartTime, req.EndTime); err != nil {
		return h.writeError(c, err, nil)
	}
	return success(c)
}

func (h *Handler) DeleteAppointment(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req AppointmentIDRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	id, err := parseID(req.ID, errAppointmentNotFound)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	if err := h.Appointments.Delete(c.UserContext(), caller, id); err != nil {
		return h.writeError(c, err, nil)
	}
	return success(c)
}

// GetAppointment is public; the student id is only shown to participants.
func (h *Handler) GetAppointment(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"), errAppointmentNotFound)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var viewer *services.Caller
	if caller, ok := middleware.Current(c); ok {
		viewer = &caller
	}
	appt, err := h.Appointments.Get(c.UserContext(), viewer, id)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(appt)
}

func (h *Handler) RateAppointment(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req RateAppointmentRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	id, err := parseID(req.ID, errInvalidAppointment)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	if err := h.Appointments.Rate(c.UserContext(), caller, id, *req.Rating); err != nil {
		return h.writeError(c, err, nil)
	}
	return success(c)
}

func (h *Handler) ListAppointments(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	appts, err := h.Appointments.List(c.UserContext(), caller, c.Query("sortBy"))
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{"appointments": appts})
}
