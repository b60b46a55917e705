package api

import (
	"strings"

	"notifycenter/internal/center"
	"notifycenter/internal/config"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 1000
)

// Response is the envelope of every API reply.
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func SendSuccess(c *fiber.Ctx, code int, data any) error {
	return c.Status(code).JSON(Response{Status: "success", Data: data})
}

func SendError(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(Response{Status: "error", Message: msg})
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version     string             `json:"version,omitempty"`
	Maintenance bool               `json:"maintenance"`
	Validation  *config.Validation `json:"validation,omitempty"`
	Alarm       center.AlarmStatus `json:"alarm"`
}

// handleSendNotification fans one notification out to every channel.
// URL: POST /api/v1/notifications
func (s *Service) handleSendNotification(c *fiber.Ctx) error {
	var n center.Notification
	if err := c.BodyParser(&n); err != nil {
		return SendError(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if !n.Type.Valid() {
		return SendError(c, fiber.StatusBadRequest, "invalid message type")
	}
	if strings.TrimSpace(n.PushText+n.EmailText+n.SMSText) == "" {
		return SendError(c, fiber.StatusBadRequest, "at least one of push_text, email_text or sms_text is required")
	}
	rep := s.deps.Center.SendNotification(c.UserContext(), n)
	if rep.Suppressed {
		return SendSuccess(c, fiber.StatusAccepted, rep)
	}
	return SendSuccess(c, fiber.StatusOK, rep)
}

// URL: GET /api/v1/alarm
func (s *Service) handleGetAlarm(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, s.deps.Center.Alarm())
}

// handleRepeatAlarm runs one repeat tick out of schedule.
// URL: POST /api/v1/alarm/repeat
func (s *Service) handleRepeatAlarm(c *fiber.Ctx) error {
	s.deps.Center.RepeatAlarmNotification(c.UserContext())
	return SendSuccess(c, fiber.StatusOK, s.deps.Center.Alarm())
}

// URL: POST /api/v1/alarm/confirm
func (s *Service) handleConfirmAlarm(c *fiber.Ctx) error {
	s.deps.Center.ConfirmAlarmNotification(c.UserContext())
	return SendSuccess(c, fiber.StatusOK, s.deps.Center.Alarm())
}

// URL: GET /api/v1/status
func (s *Service) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Version:     s.deps.Version,
		Maintenance: s.deps.Center.IsUnderMaintenance(),
		Alarm:       s.deps.Center.Alarm(),
	}
	if s.deps.Status != nil {
		v := s.deps.Status()
		resp.Validation = &v
	}
	return SendSuccess(c, fiber.StatusOK, resp)
}

// URL: GET /api/v1/deliveries?limit=N
func (s *Service) handleListDeliveries(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultDeliveryLimit)
	if limit <= 0 {
		return SendError(c, fiber.StatusBadRequest, "limit must be positive")
	}
	limit = min(limit, maxDeliveryLimit)
	recs, err := s.deps.Center.Deliveries(c.UserContext(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read delivery log")
	}
	return SendSuccess(c, fiber.StatusOK, recs)
}
