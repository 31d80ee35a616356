package notifications

import (
	"context"
	"log"
	"time"

	"github.com/you/medrecsvc/domain"
)

// MultiSender sends through a primary channel and copies to optional ones.
// Only a primary failure is reported; optional failures are logged.
type MultiSender struct {
	primary  domain.NotificationSender
	optional []domain.NotificationSender
}

// NewMultiSender creates a sender that requires primary and tries each optional sender
func NewMultiSender(primary domain.NotificationSender, optional ...domain.NotificationSender) *MultiSender {
	return &MultiSender{primary: primary, optional: optional}
}

// SendCode implements domain.NotificationSender
func (m *MultiSender) SendCode(ctx context.Context, to domain.Recipient, code string, ttl time.Duration) error {
	if err := m.primary.SendCode(ctx, to, code, ttl); err != nil {
		return err
	}
	for _, s := range m.optional {
		if err := s.SendCode(ctx, to, code, ttl); err != nil {
			log.Printf("notifications: optional delivery to %s failed: %v", to.Email, err)
		}
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.NotificationSender = (*MultiSender)(nil)
