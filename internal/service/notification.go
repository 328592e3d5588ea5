package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sumire/billnotify/internal/domain"
	"github.com/sumire/billnotify/internal/notify"
)

// PreferenceStore reads and writes notification settings.
type PreferenceStore interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	GetPreferences(ctx context.Context, userID int64) (*domain.NotificationPreferences, error)
	UpdatePreferences(ctx context.Context, userID int64, prefs domain.NotificationPreferences) (*domain.NotificationPreferences, error)
}

// HistoryStore lists past reminders.
type HistoryStore interface {
	ListForUser(ctx context.Context, userID int64, limit int) ([]domain.NotificationLogEntry, error)
}

// SlackTester posts a diagnostic Slack message.
type SlackTester interface {
	SendTest(ctx context.Context, webhookURL string) error
}

// InAppTester pushes a diagnostic in-app event.
type InAppTester interface {
	SendEvent(user domain.User, ev notify.Event) error
}

// NotificationService backs the notification settings and diagnostics endpoints.
type NotificationService struct {
	prefs   PreferenceStore
	history HistoryStore
	slack   SlackTester
	inApp   InAppTester
	hub     *notify.Hub
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(prefs PreferenceStore, history HistoryStore, slack SlackTester, inApp InAppTester, hub *notify.Hub) *NotificationService {
	return &NotificationService{
		prefs:   prefs,
		history: history,
		slack:   slack,
		inApp:   inApp,
		hub:     hub,
	}
}

// GetPreferences returns the caller's settings.
func (s *NotificationService) GetPreferences(ctx context.Context, userID int64) (*domain.NotificationPreferences, error) {
	return s.prefs.GetPreferences(ctx, userID)
}

// UpdatePreferences normalizes and stores the caller's settings.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID int64, prefs domain.NotificationPreferences) (*domain.NotificationPreferences, error) {
	for _, v := range prefs.NotificationOffsets {
		if v < 0 {
			return nil, &domain.ValidationError{
				Field:   "notification_time_offsets",
				Message: fmt.Sprintf("offset %d must not be negative", v),
			}
		}
	}
	if prefs.SlackWebhookURL != nil && *prefs.SlackWebhookURL == "" {
		prefs.SlackWebhookURL = nil
	}
	prefs.NotificationOffsets = domain.NormalizeOffsets(prefs.NotificationOffsets)

	return s.prefs.UpdatePreferences(ctx, userID, prefs)
}

// History returns the caller's most recent reminders.
func (s *NotificationService) History(ctx context.Context, userID int64, limit int) ([]domain.NotificationLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.history.ListForUser(ctx, userID, limit)
}

// SendTestSlack posts a diagnostic message to the caller's configured webhook.
func (s *NotificationService) SendTestSlack(ctx context.Context, userID int64) error {
	user, err := s.prefs.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Webhook() == "" {
		return domain.ErrSlackWebhookMissing
	}
	return s.slack.SendTest(ctx, user.Webhook())
}

// TestInAppResult reports the outcome of a diagnostic in-app event.
type TestInAppResult struct {
	Delivered   bool `json:"delivered"`
	Connections int  `json:"connections"`
}

// SendTestInApp pushes a diagnostic event to the caller's open streams,
// ignoring the in-app preference.
func (s *NotificationService) SendTestInApp(ctx context.Context, userID int64) (*TestInAppResult, error) {
	user, err := s.prefs.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.inApp.SendEvent(*user, notify.Event{
		Type:    notify.EventTest,
		Message: "This is a test notification. In-app alerts are working.",
	})
	if err != nil && !errors.Is(err, notify.ErrSkipped) {
		slog.Warn("test in-app event failed", "user_id", userID, "error", err)
	}
	return &TestInAppResult{
		Delivered:   err == nil,
		Connections: s.hub.Connections(userID),
	}, nil
}
