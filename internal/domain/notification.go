package domain

import (
	"fmt"
	"time"
)

// Channel identifies a reminder delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
	ChannelInApp Channel = "in_app"
)

// Channels returns every channel in dispatch order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSlack, ChannelInApp}
}

// NotificationLogEntry records that a reminder went out on a channel.
// At most one entry exists per (UserID, BillID, Channel, SentOn).
type NotificationLogEntry struct {
	UserID  int64     `json:"user_id" db:"user_id"`
	BillID  int64     `json:"bill_id" db:"bill_id"`
	Channel Channel   `json:"channel" db:"channel"`
	SentOn  string    `json:"sent_on" db:"sent_on"`
	Message string    `json:"message" db:"message"`
	SentAt  time.Time `json:"sent_at" db:"sent_at"`
}

// Reminder is the rendered notification for a single bill.
type Reminder struct {
	Bill          Bill
	DaysRemaining int
	Text          string
}

// NewReminder renders the reminder text for a bill due in daysRemaining days.
func NewReminder(bill Bill, daysRemaining int) Reminder {
	return Reminder{
		Bill:          bill,
		DaysRemaining: daysRemaining,
		Text:          reminderText(bill, daysRemaining),
	}
}

func reminderText(bill Bill, daysRemaining int) string {
	amount := bill.Amount.StringFixed(2)
	switch {
	case daysRemaining == 0:
		return fmt.Sprintf("Your bill %q for $%s is due today.", bill.Name, amount)
	case daysRemaining > 0:
		return fmt.Sprintf("Your bill %q for $%s is due in %d %s.", bill.Name, amount, daysRemaining, pluralDays(daysRemaining))
	default:
		overdue := -daysRemaining
		return fmt.Sprintf("Your bill %q for $%s was due %d %s ago.", bill.Name, amount, overdue, pluralDays(overdue))
	}
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
