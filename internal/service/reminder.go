package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sumire/billnotify/internal/domain"
	"github.com/sumire/billnotify/internal/notify"
)

// ReminderUserStore lists users eligible for reminders.
type ReminderUserStore interface {
	ListNotifiable(ctx context.Context) ([]domain.User, error)
}

// ReminderBillStore lists bills for a calendar day.
type ReminderBillStore interface {
	ListUnpaidDueOn(ctx context.Context, userID int64, day time.Time) ([]domain.Bill, error)
}

// NotificationLog is the duplicate-send guard.
type NotificationLog interface {
	HasSent(ctx context.Context, userID, billID int64, ch domain.Channel, day time.Time) (bool, error)
	LogSent(ctx context.Context, entry domain.NotificationLogEntry) error
}

// ReminderConfig tunes a ReminderService.
type ReminderConfig struct {
	// Location decides which calendar day "today" is.
	Location *time.Location
	// InAppLogRequiresDelivery logs in-app reminders only when a stream
	// accepted them. When false, in-app reminders are logged after every
	// attempt and are therefore never retried.
	InAppLogRequiresDelivery bool
}

// Outcome is the result of one channel attempt.
type Outcome string

const (
	OutcomeDelivered  Outcome = "delivered"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeFailed     Outcome = "failed"
)

// RunReport summarizes one reminder run.
type RunReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Users     int
	Bills     int
	Channels  map[domain.Channel]map[Outcome]int
	Errors    int
}

func (r *RunReport) record(ch domain.Channel, o Outcome) {
	if r.Channels == nil {
		r.Channels = make(map[domain.Channel]map[Outcome]int)
	}
	if r.Channels[ch] == nil {
		r.Channels[ch] = make(map[Outcome]int)
	}
	r.Channels[ch][o]++
	if o == OutcomeFailed {
		r.Errors++
	}
}

// Count returns how many attempts on ch ended with o.
func (r RunReport) Count(ch domain.Channel, o Outcome) int {
	return r.Channels[ch][o]
}

// LogValue implements slog.LogValuer.
func (r RunReport) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("users", r.Users),
		slog.Int("bills", r.Bills),
		slog.Int("errors", r.Errors),
		slog.Duration("duration", r.Duration),
	}
	for _, ch := range domain.Channels() {
		attrs = append(attrs, slog.Group(string(ch),
			slog.Int(string(OutcomeDelivered), r.Count(ch, OutcomeDelivered)),
			slog.Int(string(OutcomeSkipped), r.Count(ch, OutcomeSkipped)),
			slog.Int(string(OutcomeSuppressed), r.Count(ch, OutcomeSuppressed)),
			slog.Int(string(OutcomeFailed), r.Count(ch, OutcomeFailed)),
		))
	}
	return slog.GroupValue(attrs...)
}

// ReminderService sends due-date reminders for every eligible user.
type ReminderService struct {
	users   ReminderUserStore
	bills   ReminderBillStore
	log     NotificationLog
	senders []notify.Sender
	cfg     ReminderConfig
	now     func() time.Time
}

// NewReminderService creates a ReminderService. Senders are tried in the
// order given for every bill.
func NewReminderService(users ReminderUserStore, bills ReminderBillStore, log NotificationLog, cfg ReminderConfig, senders ...notify.Sender) *ReminderService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReminderService{
		users:   users,
		bills:   bills,
		log:     log,
		senders: senders,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run performs one reminder pass. It only returns an error when the user
// list cannot be loaded; failures for a single user, bill or channel are
// logged, counted in the report and skipped over.
//
// Overlapping runs are safe: the notification log is checked before every
// send, so a concurrent run can at worst repeat a send that was in flight.
func (s *ReminderService) Run(ctx context.Context) (report RunReport, err error) {
	now := s.now()
	report.StartedAt = now
	defer func() { report.Duration = s.now().Sub(now) }()

	today := domain.Day(now, s.cfg.Location)

	users, err := s.users.ListNotifiable(ctx)
	if err != nil {
		return report, fmt.Errorf("load users: %w", err)
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !user.AnyChannelEnabled() {
			continue
		}
		report.Users++
		s.remindUser(ctx, user, today, &report)
	}

	return report, nil
}

func (s *ReminderService) remindUser(ctx context.Context, user domain.User, today time.Time, report *RunReport) {
	for _, offset := range user.EffectiveOffsets() {
		target := domain.AddDays(today, offset)

		bills, err := s.bills.ListUnpaidDueOn(ctx, user.ID, target)
		if err != nil {
			report.Errors++
			slog.Error("load bills failed", "user_id", user.ID, "due", domain.DayKey(target), "error", err)
			continue
		}

		for _, bill := range bills {
			report.Bills++
			// target is today+offset, so the offset is the number of days left
			reminder := domain.NewReminder(bill, offset)
			for _, sender := range s.senders {
				report.record(sender.Channel(), s.dispatch(ctx, sender, user, reminder, today))
			}
		}
	}
}

func (s *ReminderService) dispatch(ctx context.Context, sender notify.Sender, user domain.User, reminder domain.Reminder, today time.Time) Outcome {
	ch := sender.Channel()
	attrs := []any{"user_id", user.ID, "bill_id", reminder.Bill.ID, "channel", ch}

	if !user.ChannelEnabled(ch) {
		return OutcomeSkipped
	}

	sent, err := s.log.HasSent(ctx, user.ID, reminder.Bill.ID, ch, today)
	if err != nil {
		slog.Error("notification log check failed", append(attrs, "error", err)...)
		return OutcomeFailed
	}
	if sent {
		return OutcomeSuppressed
	}

	outcome := OutcomeDelivered
	sendErr := sender.Send(ctx, user, reminder)
	switch {
	case sendErr == nil:
	case errors.Is(sendErr, notify.ErrSkipped):
		outcome = OutcomeSkipped
	default:
		outcome = OutcomeFailed
		slog.Warn("reminder delivery failed", append(attrs, "error", sendErr)...)
	}

	if s.shouldLog(ch, outcome) {
		entry := domain.NotificationLogEntry{
			UserID:  user.ID,
			BillID:  reminder.Bill.ID,
			Channel: ch,
			SentOn:  domain.DayKey(today),
			Message: reminder.Text,
			SentAt:  s.now().UTC(),
		}
		if err := s.log.LogSent(ctx, entry); err != nil {
			slog.Error("notification log write failed", append(attrs, "error", err)...)
		}
	}

	if outcome == OutcomeDelivered {
		slog.Debug("reminder sent", attrs...)
	}
	return outcome
}

// shouldLog applies the log-write policy: email and Slack are recorded only
// once delivered, in-app after every attempt unless configured otherwise.
func (s *ReminderService) shouldLog(ch domain.Channel, outcome Outcome) bool {
	if outcome == OutcomeDelivered {
		return true
	}
	return ch == domain.ChannelInApp && !s.cfg.InAppLogRequiresDelivery
}
