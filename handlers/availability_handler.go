package handlers

import (
	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/gofiber/fiber/v2"
)

type AvailabilitySlotRequest struct {
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

type SetAvailabilityRequest struct {
	Availabilities []AvailabilitySlotRequest `json:"availabilities" validate:"dive"`
}

func (h *Handler) SetAvailability(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req SetAvailabilityRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	input := make([]services.AvailabilityInput, len(req.Availabilities))
	for i, a := range req.Availabilities {
		input[i] = services.AvailabilityInput{StartTime: a.StartTime, EndTime: a.EndTime}
	}
	slots, err := h.Availability.Replace(c.UserContext(), caller, input)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{"availabilities": slots})
}

func (h *Handler) GetAvailability(c *fiber.Ctx) error {
	tutorID, err := parseID(c.Params("tutorId"), apperror.NotFound("Tutor not found"))
	if err != nil {
		return h.writeError(c, err, nil)
	}
	slots, err := h.Availability.List(c.UserContext(), tutorID)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{"availabilities": slots})
}
