package repository

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sumire/billnotify/internal/domain"
)

// sqliteSchema mirrors the embedded migrations in a dialect SQLite accepts.
// TestSQLiteSchemaMatchesMigrations fails when the column lists drift apart,
// so a new migration needs a matching edit here.
const sqliteSchema = `
CREATE TABLE users (
    id                             INTEGER PRIMARY KEY AUTOINCREMENT,
    email                          TEXT NOT NULL DEFAULT '',
    is_email_notification_enabled  BOOLEAN NOT NULL DEFAULT 1,
    is_slack_notification_enabled  BOOLEAN NOT NULL DEFAULT 0,
    slack_webhook_url              TEXT,
    in_app_alerts_enabled          BOOLEAN NOT NULL DEFAULT 1,
    notification_time_offsets      TEXT
);
CREATE TABLE bills (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id   INTEGER NOT NULL,
    name      TEXT NOT NULL,
    amount    NUMERIC NOT NULL,
    due_date  DATE NOT NULL,
    is_paid   BOOLEAN NOT NULL DEFAULT 0
);
CREATE TABLE notification_log (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id  INTEGER NOT NULL,
    bill_id  INTEGER NOT NULL,
    channel  TEXT NOT NULL,
    sent_on  TEXT NOT NULL,
    message  TEXT NOT NULL,
    sent_at  TIMESTAMP NOT NULL,
    UNIQUE (user_id, bill_id, channel, sent_on)
);
`

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// a second connection would see a different in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(sqliteSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func insertUser(t *testing.T, db *sqlx.DB, email string, emailOn, slackOn, inAppOn bool, webhook *string, offsets string) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO users (email, is_email_notification_enabled, is_slack_notification_enabled,
		                    slack_webhook_url, in_app_alerts_enabled, notification_time_offsets)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		email, emailOn, slackOn, webhook, inAppOn, offsets)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func insertBill(t *testing.T, db *sqlx.DB, userID int64, name, amount string, due time.Time, paid bool) int64 {
	t.Helper()
	res, err := db.Exec(
		`INSERT INTO bills (user_id, name, amount, due_date, is_paid) VALUES (?, ?, ?, ?, ?)`,
		userID, name, decimal.RequireFromString(amount), due, paid)
	if err != nil {
		t.Fatalf("insert bill: %v", err)
	}
	id, _ := res.LastInsertId()
	return id
}

func strPtr(s string) *string { return &s }

func TestUserRepository_ListNotifiable(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	emailOnly := insertUser(t, db, "a@example.com", true, false, false, nil, "1,5")
	insertUser(t, db, "b@example.com", false, false, false, nil, "")
	slackOnly := insertUser(t, db, "", false, true, false, strPtr("https://hooks.slack.com/x"), "")

	users, err := repo.ListNotifiable(context.Background())
	if err != nil {
		t.Fatalf("ListNotifiable: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("want 2 users, got %d", len(users))
	}
	if users[0].ID != emailOnly || users[1].ID != slackOnly {
		t.Fatalf("unexpected users: %+v", users)
	}
	if !slices.Equal(users[0].NotificationOffsets, domain.Offsets{1, 5}) {
		t.Fatalf("offsets not decoded: %v", users[0].NotificationOffsets)
	}
	if users[1].Webhook() != "https://hooks.slack.com/x" {
		t.Fatalf("webhook not decoded: %q", users[1].Webhook())
	}
}

func TestUserRepository_PreferencesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	id := insertUser(t, db, "a@example.com", true, false, true, nil, "")

	stored, err := repo.UpdatePreferences(ctx, id, domain.NotificationPreferences{
		EmailEnabled:        false,
		SlackEnabled:        true,
		SlackWebhookURL:     strPtr("https://hooks.slack.com/services/T/B/X"),
		InAppEnabled:        true,
		NotificationOffsets: domain.Offsets{5, 1, 10},
	})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}

	got, err := repo.GetPreferences(ctx, id)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	for _, p := range []*domain.NotificationPreferences{stored, got} {
		if !slices.Equal(p.NotificationOffsets, domain.Offsets{1, 5, 10}) {
			t.Fatalf("want offsets [1 5 10], got %v", p.NotificationOffsets)
		}
		if p.EmailEnabled || !p.SlackEnabled || !p.InAppEnabled {
			t.Fatalf("toggles not persisted: %+v", p)
		}
		if p.SlackWebhookURL == nil || *p.SlackWebhookURL != "https://hooks.slack.com/services/T/B/X" {
			t.Fatalf("webhook not persisted: %v", p.SlackWebhookURL)
		}
	}

	var raw string
	if err := db.Get(&raw, `SELECT notification_time_offsets FROM users WHERE id = ?`, id); err != nil {
		t.Fatalf("read raw offsets: %v", err)
	}
	if raw != "1,5,10" {
		t.Fatalf("want storage form 1,5,10, got %q", raw)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.GetPreferences(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := repo.UpdatePreferences(context.Background(), 99, domain.NotificationPreferences{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound on update, got %v", err)
	}
}

func TestBillRepository_ListUnpaidDueOn(t *testing.T) {
	db := newTestDB(t)
	repo := NewBillRepository(db)

	day := time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)
	user := insertUser(t, db, "a@example.com", true, false, false, nil, "")
	other := insertUser(t, db, "b@example.com", true, false, false, nil, "")

	rent := insertBill(t, db, user, "Rent", "1200.50", day, false)
	insertBill(t, db, user, "Paid already", "10", day, true)
	insertBill(t, db, user, "Tomorrow", "10", day.AddDate(0, 0, 1), false)
	insertBill(t, db, user, "Yesterday", "10", day.AddDate(0, 0, -1), false)
	insertBill(t, db, other, "Someone else", "10", day, false)

	bills, err := repo.ListUnpaidDueOn(context.Background(), user, day)
	if err != nil {
		t.Fatalf("ListUnpaidDueOn: %v", err)
	}
	if len(bills) != 1 || bills[0].ID != rent {
		t.Fatalf("want only the rent bill, got %+v", bills)
	}
	if !bills[0].Amount.Equal(decimal.RequireFromString("1200.50")) {
		t.Fatalf("amount mismatch: %s", bills[0].Amount)
	}
	if !bills[0].DueDate.Equal(day) {
		t.Fatalf("due date mismatch: %s", bills[0].DueDate)
	}
}

func TestNotificationLogRepository_Idempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewNotificationLogRepository(db)
	ctx := context.Background()
	day := time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC)

	sent, err := repo.HasSent(ctx, 1, 2, domain.ChannelEmail, day)
	if err != nil || sent {
		t.Fatalf("fresh log: sent=%v err=%v", sent, err)
	}

	entry := domain.NotificationLogEntry{
		UserID:  1,
		BillID:  2,
		Channel: domain.ChannelEmail,
		SentOn:  domain.DayKey(day),
		Message: "first",
	}
	if err := repo.LogSent(ctx, entry); err != nil {
		t.Fatalf("first LogSent: %v", err)
	}
	entry.Message = "second"
	if err := repo.LogSent(ctx, entry); err != nil {
		t.Fatalf("second LogSent: %v", err)
	}

	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM notification_log`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("want exactly one row, got %d", count)
	}

	sent, err = repo.HasSent(ctx, 1, 2, domain.ChannelEmail, day)
	if err != nil || !sent {
		t.Fatalf("after log: sent=%v err=%v", sent, err)
	}

	// other channel and other day are independent keys
	if sent, _ := repo.HasSent(ctx, 1, 2, domain.ChannelSlack, day); sent {
		t.Fatal("slack must not be marked sent")
	}
	if sent, _ := repo.HasSent(ctx, 1, 2, domain.ChannelEmail, day.AddDate(0, 0, 1)); sent {
		t.Fatal("next day must not be marked sent")
	}

	entries, err := repo.ListForUser(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "first" || entries[0].SentOn != "2026-10-15" {
		t.Fatalf("unexpected history: %+v", entries)
	}
}
