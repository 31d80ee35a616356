package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/you/medrecsvc/domain"
	"gopkg.in/gomail.v2"
)

// mailer is the part of gomail.Dialer the sender uses
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers verification codes over SMTP
type EmailSender struct {
	dialer mailer
	from   string
}

// NewEmailSender creates an SMTP sender. Without a host, codes are logged instead of sent.
func NewEmailSender(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailSender {
	var dialer mailer
	if smtpHost != "" {
		dialer = gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	}
	return &EmailSender{
		dialer: dialer,
		from:   fromEmail,
	}
}

// SendCode implements domain.NotificationSender
func (s *EmailSender) SendCode(ctx context.Context, to domain.Recipient, code string, ttl time.Duration) error {
	if to.Email == "" {
		return fmt.Errorf("%w: recipient has no email address", domain.ErrNotificationFailed)
	}
	if s.dialer == nil {
		log.Printf("[MOCK EMAIL] To: %s, Code: %s", to.Email, code)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to.Email)
	m.SetHeader("Subject", "Your verification code")

	name := to.Name
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(`
		<h3>Hello %s,</h3>
		<p>Your verification code is <strong>%s</strong>.</p>
		<p>It expires in %d minutes. If you did not request it, you can ignore this email.</p>
	`, name, code, int(ttl.Minutes()))
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: failed to send verification email: %v", domain.ErrNotificationFailed, err)
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.NotificationSender = (*EmailSender)(nil)
