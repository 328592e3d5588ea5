package notify

import (
	"context"
	"time"

	"github.com/sumire/billnotify/internal/domain"
)

// Event types carried in the "type" field of every SSE payload.
const (
	EventConnected    = "connected"
	EventBillReminder = "bill_reminder"
	EventTest         = "test"
)

// Event is the JSON payload written to in-app streams.
type Event struct {
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	BillID        int64     `json:"bill_id,omitempty"`
	BillName      string    `json:"bill_name,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	DueDate       string    `json:"due_date,omitempty"`
	DaysRemaining *int      `json:"days_remaining,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

// Test reports whether the event is a diagnostic message, which bypasses
// the user's in-app preference.
func (e Event) Test() bool {
	return e.Type == EventTest
}

// InAppSender pushes reminders to the user's open browser streams.
type InAppSender struct {
	hub *Hub
	now func() time.Time
}

// NewInAppSender creates an InAppSender over hub.
func NewInAppSender(hub *Hub) *InAppSender {
	return &InAppSender{hub: hub, now: time.Now}
}

func (s *InAppSender) Channel() domain.Channel { return domain.ChannelInApp }

// Send delivers a reminder event. A user without an open stream is skipped;
// the event is not queued.
func (s *InAppSender) Send(_ context.Context, user domain.User, reminder domain.Reminder) error {
	days := reminder.DaysRemaining
	return s.SendEvent(user, Event{
		Type:          EventBillReminder,
		Message:       reminder.Text,
		BillID:        reminder.Bill.ID,
		BillName:      reminder.Bill.Name,
		Amount:        reminder.Bill.Amount.StringFixed(2),
		DueDate:       domain.DayKey(reminder.Bill.DueDate),
		DaysRemaining: &days,
	})
}

// SendEvent writes an arbitrary event to the user's streams.
func (s *InAppSender) SendEvent(user domain.User, ev Event) error {
	if !user.InAppEnabled && !ev.Test() {
		return ErrSkipped
	}
	if ev.SentAt.IsZero() {
		ev.SentAt = s.now().UTC()
	}

	delivered, err := s.hub.Send(user.ID, ev)
	if err != nil {
		return err
	}
	if !delivered {
		return ErrSkipped
	}
	return nil
}
