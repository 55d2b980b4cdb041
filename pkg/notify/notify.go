package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Message is addressed to the caller. Channels that deliver elsewhere (email) use their own recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

type INotifier interface {
	// Notify tries every channel and joins their errors.
	Notify(ctx context.Context, msg Message) error
}

type notifier struct {
	log      *logrus.Logger
	channels []Channel
}

func New(log *logrus.Logger, channels ...Channel) INotifier {
	enabled := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if c != nil {
			enabled = append(enabled, c)
		}
	}

	return &notifier{log: log, channels: enabled}
}

func (n *notifier) Notify(ctx context.Context, msg Message) error {
	var errs []error

	for _, c := range n.channels {
		if err := c.Send(ctx, msg); err != nil {
			n.log.WithFields(logrus.Fields{
				"channel": c.Name(),
				"to":      msg.To,
				"error":   err.Error(),
			}).Warn("Notification channel failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}

		n.log.WithFields(logrus.Fields{
			"channel": c.Name(),
			"to":      msg.To,
		}).Debug("Notification sent")
	}

	return errors.Join(errs...)
}
