// Package notify delivers bill reminders over email, Slack and in-app
// server-sent events.
//
// Senders return nil when the reminder was handed to the channel,
// ErrSkipped when the user has nothing configured for it, and any other
// error for a failed delivery. Nothing is retried here.
package notify

import (
	"context"
	"errors"

	"github.com/sumire/billnotify/internal/domain"
)

// ErrSkipped marks a send that was not attempted because the channel is not
// configured for the recipient.
var ErrSkipped = errors.New("notification skipped")

// Sender delivers a reminder on one channel.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, user domain.User, reminder domain.Reminder) error
}
