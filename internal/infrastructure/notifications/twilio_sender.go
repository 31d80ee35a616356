package notifications

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/you/medrecsvc/domain"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender texts verification codes to the recipient's mobile number
type TwilioSender struct {
	api        messageCreator
	fromNumber string
	dialPrefix string
}

// NewTwilioSender creates a new Twilio sender
func NewTwilioSender(accountSID, authToken, fromNumber, dialPrefix string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{
		api:        client.Api,
		fromNumber: fromNumber,
		dialPrefix: dialPrefix,
	}
}

// SendCode implements domain.NotificationSender
func (t *TwilioSender) SendCode(ctx context.Context, to domain.Recipient, code string, ttl time.Duration) error {
	if to.Mobile == "" {
		return fmt.Errorf("%w: recipient has no mobile number", domain.ErrNotificationFailed)
	}
	number := t.e164(to.Mobile)
	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(ttl.Minutes()))

	// If credentials are not configured, log instead of sending
	if t.fromNumber == "" {
		log.Printf("[MOCK SMS] To: %s, Message: %s", number, message)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(number)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("%w: failed to send SMS: %v", domain.ErrNotificationFailed, err)
	}
	return nil
}

func (t *TwilioSender) e164(mobile string) string {
	if strings.HasPrefix(mobile, "+") {
		return mobile
	}
	return t.dialPrefix + mobile
}

// Compile-time interface compliance verification
var _ domain.NotificationSender = (*TwilioSender)(nil)
