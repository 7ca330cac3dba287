package notifications

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/you/kycstore/domain"
	"go.uber.org/zap"
)

// messageCreator is the part of the Twilio API client we use
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioServiceImpl implements domain.NotificationService
type TwilioServiceImpl struct {
	api        messageCreator
	fromNumber string
	logger     *zap.Logger
}

// NewTwilioService creates a new Twilio notification service. Without a
// sender number messages are only logged.
func NewTwilioService(accountSID, authToken, fromNumber string, logger *zap.Logger) *TwilioServiceImpl {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioServiceImpl{
		api:        client.Api,
		fromNumber: fromNumber,
		logger:     logger,
	}
}

// SendSMS implements domain.NotificationService
func (t *TwilioServiceImpl) SendSMS(to, message string) error {
	if to == "" {
		return fmt.Errorf("no recipient number")
	}
	if t.fromNumber == "" {
		t.logger.Info("sms not sent, twilio sender not configured",
			zap.String("to", to),
			zap.String("message", message))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	if _, err := t.api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

var _ domain.NotificationService = (*TwilioServiceImpl)(nil)
