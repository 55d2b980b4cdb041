package notify

import (
	"VoiceBooking/pkg/smtp"
	twilioPkg "VoiceBooking/pkg/twilio"
	"VoiceBooking/pkg/whatsapp"
	"context"
	"errors"
	"strings"
)

var ErrNoRecipient = errors.New("no reachable recipient")

type smsChannel struct {
	sender twilioPkg.ISMSSender
}

func NewSMSChannel(sender twilioPkg.ISMSSender) Channel {
	if sender == nil {
		return nil
	}
	return &smsChannel{sender: sender}
}

func (c *smsChannel) Name() string { return "sms" }

func (c *smsChannel) Send(ctx context.Context, msg Message) error {
	if !isPhoneNumber(msg.To) {
		return ErrNoRecipient
	}
	return c.sender.SendSMS(ctx, msg.To, msg.Body)
}

type emailChannel struct {
	mailer smtp.ItfSmtp
	to     string
}

// NewEmailChannel sends every notification to one fixed inbox, e.g. the front desk.
func NewEmailChannel(mailer smtp.ItfSmtp, to string) Channel {
	if mailer == nil || to == "" {
		return nil
	}
	return &emailChannel{mailer: mailer, to: to}
}

func (c *emailChannel) Name() string { return "email" }

func (c *emailChannel) Send(_ context.Context, msg Message) error {
	body := msg.Body
	if msg.To != "" {
		body = "Caller: " + msg.To + "\r\n" + body
	}
	return c.mailer.SendMail(c.to, msg.Subject, body)
}

type whatsappChannel struct {
	sender whatsapp.IWhatsappSender
}

func NewWhatsappChannel(sender whatsapp.IWhatsappSender) Channel {
	if sender == nil {
		return nil
	}
	return &whatsappChannel{sender: sender}
}

func (c *whatsappChannel) Name() string { return "whatsapp" }

func (c *whatsappChannel) Send(ctx context.Context, msg Message) error {
	if !isPhoneNumber(msg.To) {
		return ErrNoRecipient
	}
	return c.sender.SendMessage(ctx, msg.To, msg.Body)
}

func isPhoneNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || s == "unknown" {
		return false
	}
	return whatsapp.NormalizeNumber(s) != ""
}
