package handlers

import (
	"github.com/anjiri1684/tutor_booking/apperror"
	"github.com/anjiri1684/tutor_booking/middleware"
	"github.com/anjiri1684/tutor_booking/services"
	"github.com/anjiri1684/tutor_booking/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type AppointmentMessageRequest struct {
	ID      string `json:"id" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type DirectMessageRequest struct {
	OtherID string `json:"otherId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// Unknown appointments and users are reported as bad requests on the chat
// routes.
var notFoundIsBadRequest = statusOverride{apperror.KindNotFound: fiber.StatusBadRequest}

func (h *Handler) PostAppointmentMessage(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req AppointmentMessageRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	id, err := parseID(req.ID, errInvalidAppointment)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	posted, err := h.Messaging.PostAppointmentMessage(c.UserContext(), caller, id, req.Message)
	if err != nil {
		return h.writeError(c, err, notFoundIsBadRequest)
	}
	return c.JSON(posted)
}

func (h *Handler) GetAppointmentMessages(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	id, err := parseID(c.Params("id"), errInvalidAppointment)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	msgs, err := h.Messaging.GetAppointmentMessages(c.UserContext(), caller, id)
	if err != nil {
		return h.writeError(c, err, notFoundIsBadRequest)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func (h *Handler) PostDirectMessage(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	var req DirectMessageRequest
	if err := parseBody(c, &req); err != nil {
		return h.bodyError(c, err)
	}
	otherID, err := parseID(req.OtherID, apperror.BadRequest("Invalid otherId"))
	if err != nil {
		return h.writeError(c, err, nil)
	}
	posted, err := h.Messaging.PostDirectMessage(c.UserContext(), caller, otherID, req.Message)
	if err != nil {
		return h.writeError(c, err, notFoundIsBadRequest)
	}
	return c.JSON(posted)
}

func (h *Handler) ListDirectThreads(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	ids, err := h.Messaging.ListDirectThreads(c.UserContext(), caller)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{"otherIds": ids})
}

func (h *Handler) GetDirectThread(c *fiber.Ctx) error {
	caller, err := currentCaller(c)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	otherID, err := parseID(c.Params("otherId"), apperror.BadRequest("Invalid otherId"))
	if err != nil {
		return h.writeError(c, err, nil)
	}
	msgs, err := h.Messaging.GetDirectThread(c.UserContext(), caller, otherID)
	if err != nil {
		return h.writeError(c, err, nil)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// UpgradeWs only lets websocket handshakes through to ServeWs.
func UpgradeWs(c *fiber.Ctx) error {
	if !websocketcontrib.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// ServeWs registers the connection with the hub for the session's user and
// keeps it open until the client goes away. Clients only receive.
func (h *Handler) ServeWs(conn *websocketcontrib.Conn) {
	caller, ok := conn.Locals(middleware.CallerKey).(services.Caller)
	if !ok {
		_ = conn.Close()
		return
	}
	client := websocket.NewClient(caller.ID, conn)
	h.Hub.Register(client)
	defer func() {
		h.Hub.Unregister(client)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocketcontrib.IsUnexpectedCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				h.Log.Debug("websocket closed", "user_id", caller.ID, "error", err)
			}
			return
		}
	}
}
