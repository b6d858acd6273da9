package email

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// sendWithSendgrid delivers through the Sendgrid v3 API. Sendgrid answers
// 202 once the message is queued.
func (s *Service) sendWithSendgrid(data EmailData, htmlContent, textContent string) error {
	if s.sendgridClient == nil {
		return fmt.Errorf("sendgrid client is not configured")
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(data.FromName, data.From),
		data.Subject,
		mail.NewEmail("", data.To),
		textContent,
		htmlContent,
	)
	message.SetHeader("X-Lockity-Template", data.TemplateName)

	response, err := s.sendgridClient.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send %s email via Sendgrid: %w", data.TemplateName, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("sendgrid rejected %s email: status %d: %s", data.TemplateName, response.StatusCode, response.Body)
	}
	return nil
}
