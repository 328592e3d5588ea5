package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/billnotify/internal/domain"
)

// NotificationLogRepository persists which reminders were already sent.
type NotificationLogRepository struct {
	db *sqlx.DB
}

// NewNotificationLogRepository creates a new NotificationLogRepository.
func NewNotificationLogRepository(db *sqlx.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// HasSent reports whether a reminder for the bill went out on ch on the given day.
func (r *NotificationLogRepository) HasSent(ctx context.Context, userID, billID int64, ch domain.Channel, day time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(
		`SELECT COUNT(*) FROM notification_log
		 WHERE user_id = ? AND bill_id = ? AND channel = ? AND sent_on = ?`),
		userID, billID, ch, domain.DayKey(day),
	)
	if err != nil {
		return false, fmt.Errorf("check notification log %d/%d/%s: %w", userID, billID, ch, err)
	}
	return n > 0, nil
}

// LogSent records a sent reminder. Writing the same key twice keeps the first row.
func (r *NotificationLogRepository) LogSent(ctx context.Context, entry domain.NotificationLogEntry) error {
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO notification_log (user_id, bill_id, channel, sent_on, message, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, bill_id, channel, sent_on) DO NOTHING`),
		entry.UserID, entry.BillID, entry.Channel, entry.SentOn, entry.Message, entry.SentAt,
	)
	if err != nil {
		return fmt.Errorf("log notification %d/%d/%s: %w", entry.UserID, entry.BillID, entry.Channel, err)
	}
	return nil
}

// ListForUser returns the most recent log entries of a user, newest first.
func (r *NotificationLogRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]domain.NotificationLogEntry, error) {
	var entries []domain.NotificationLogEntry
	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(
		`SELECT user_id, bill_id, channel, CAST(sent_on AS TEXT) AS sent_on, message, sent_at
		 FROM notification_log
		 WHERE user_id = ?
		 ORDER BY sent_at DESC, id DESC
		 LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification log for user %d: %w", userID, err)
	}
	return entries, nil
}
