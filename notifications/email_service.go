package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/tutor_booking/logger"
	"github.com/gofiber/fiber/v2"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// Mailer sends a single transactional e-mail.
type Mailer interface {
	Send(ctx context.Context, toName, toEmail, subject, htmlContent string) error
}

// NopMailer is used when Brevo is not configured.
type NopMailer struct{}

func (NopMailer) Send(context.Context, string, string, string, string) error { return nil }

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string

	log *logger.Logger
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewMailer returns a Brevo-backed mailer, or NopMailer when any of the
// credentials is missing.
func NewMailer(apiKey, senderEmail, senderName string, log *logger.Logger) Mailer {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Warn("email service not configured, e-mails are disabled")
		return NopMailer{}
	}
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		log:         log.With("service", "BrevoMailer"),
	}
}

func (s *BrevoService) Send(ctx context.Context, toName, toEmail, subject, htmlContent string) error {
	at := strings.Index(toEmail, "@")
	if at <= 0 {
		return fmt.Errorf("invalid recipient email: %q", toEmail)
	}
	if toName == "" {
		toName = toEmail[:at]
	}

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(s.Endpoint).
		Set("accept", "application/json").
		Set("api-key", s.APIKey).
		Timeout(timeout).
		JSON(brevoPayload{
			Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
			To:          []map[string]string{{"email": toEmail, "name": toName}},
			Subject:     subject,
			HTMLContent: htmlContent,
		})

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("brevo request: %w", errors.Join(errs...))
	}
	if code != fiber.StatusCreated {
		return fmt.Errorf("brevo status %d: %s", code, body)
	}
	s.log.Debug("email sent", "to", toEmail, "subject", subject)
	return nil
}
