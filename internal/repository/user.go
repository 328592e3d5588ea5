package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/billnotify/internal/domain"
)

const userColumns = `id, email, is_email_notification_enabled, is_slack_notification_enabled,
       slack_webhook_url, in_app_alerts_enabled, notification_time_offsets`

// UserRepository reads users and their notification preferences.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves a user by their ID.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id %d: %w", id, err)
	}
	return &user, nil
}

// ListNotifiable returns every user with at least one reminder channel enabled.
func (r *UserRepository) ListNotifiable(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users
		 WHERE is_email_notification_enabled
		    OR is_slack_notification_enabled
		    OR in_app_alerts_enabled
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notifiable users: %w", err)
	}
	return users, nil
}

// GetPreferences returns the notification settings of a user.
func (r *UserRepository) GetPreferences(ctx context.Context, userID int64) (*domain.NotificationPreferences, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := user.Preferences()
	return &prefs, nil
}

// UpdatePreferences replaces the notification settings of a user and returns the stored result.
func (r *UserRepository) UpdatePreferences(ctx context.Context, userID int64, prefs domain.NotificationPreferences) (*domain.NotificationPreferences, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users
		 SET is_email_notification_enabled = ?,
		     is_slack_notification_enabled = ?,
		     slack_webhook_url = ?,
		     in_app_alerts_enabled = ?,
		     notification_time_offsets = ?
		 WHERE id = ?`),
		prefs.EmailEnabled, prefs.SlackEnabled, prefs.SlackWebhookURL,
		prefs.InAppEnabled, domain.NormalizeOffsets(prefs.NotificationOffsets), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update preferences for user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetPreferences(ctx, userID)
}
