package mailer

import (
	"fmt"
	"html"

	"ai-mediagen-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendGenerationFailed(toEmail string, n GenerationFailedNotice) error
}

// GenerationFailedNotice is what the user is told after a failed, refunded generation.
type GenerationFailedNotice struct {
	FullName        string
	ModelID         string
	Prompt          string
	Reason          string
	CreditsRefunded int
	GenerationID    string
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderEmail, frontendURL string, log logger.ILogger) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
		logger:      log,
	}
}

func (s *emailService) SendGenerationFailed(toEmail string, n GenerationFailedNotice) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your generation could not be completed")
	m.SetBody("text/html", RenderGenerationFailed(s.frontendURL, n))

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("MAILER", "Failed to send generation failure email", map[string]interface{}{
			"to":            toEmail,
			"generation_id": n.GenerationID,
			"error":         err.Error(),
		})
		return err
	}

	s.logger.Info("MAILER", "Generation failure email sent", map[string]interface{}{
		"to":            toEmail,
		"generation_id": n.GenerationID,
	})
	return nil
}

// RenderGenerationFailed builds the HTML body. User supplied text is escaped.
func RenderGenerationFailed(frontendURL string, n GenerationFailedNotice) string {
	name := n.FullName
	if name == "" {
		name = "there"
	}
	prompt := n.Prompt
	if len([]rune(prompt)) > 120 {
		prompt = string([]rune(prompt)[:120]) + "..."
	}
	historyLink := fmt.Sprintf("%s/generations/%s", frontendURL, n.GenerationID)

	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Hi %s,</h2>
			<p>Your <strong>%s</strong> generation could not be completed.</p>
			<p style="color: #777;">&ldquo;%s&rdquo;</p>
			<p>Reason: %s</p>
			<p><strong>%d credits</strong> have been returned to your balance.</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">View generation</a>
		</div>
	`,
		html.EscapeString(name),
		html.EscapeString(n.ModelID),
		html.EscapeString(prompt),
		html.EscapeString(n.Reason),
		n.CreditsRefunded,
		historyLink,
	)
}
