package twilioPkg

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrSMSNotConfigured = errors.New("twilio sms is not configured")

type ISMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type smsSender struct {
	client *twilio.RestClient
	from   string
}

// NewSMSSender reads TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
func NewSMSSender() (ISMSSender, error) {
	accountSID := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_FROM_NUMBER")

	if accountSID == "" || authToken == "" || from == "" {
		return nil, ErrSMSNotConfigured
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &smsSender{client: client, from: from}, nil
}

func (s *smsSender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	if resp.Sid != nil {
		logrus.WithField("sid", *resp.Sid).Debug("SMS queued")
	}

	return nil
}
