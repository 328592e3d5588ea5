package domain

// User is the notification view of an account owned by the user directory.
type User struct {
	ID                  int64   `json:"id" db:"id"`
	Email               string  `json:"email" db:"email"`
	EmailEnabled        bool    `json:"is_email_notification_enabled" db:"is_email_notification_enabled"`
	SlackEnabled        bool    `json:"is_slack_notification_enabled" db:"is_slack_notification_enabled"`
	SlackWebhookURL     *string `json:"slack_webhook_url" db:"slack_webhook_url"`
	InAppEnabled        bool    `json:"in_app_alerts_enabled" db:"in_app_alerts_enabled"`
	NotificationOffsets Offsets `json:"notification_time_offsets" db:"notification_time_offsets"`
}

// AnyChannelEnabled reports whether the user wants reminders on at least one channel.
func (u User) AnyChannelEnabled() bool {
	return u.EmailEnabled || u.SlackEnabled || u.InAppEnabled
}

// ChannelEnabled reports the user's toggle for ch.
func (u User) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return u.EmailEnabled
	case ChannelSlack:
		return u.SlackEnabled
	case ChannelInApp:
		return u.InAppEnabled
	default:
		return false
	}
}

// EffectiveOffsets returns the configured offsets, or DefaultOffsets when none are set.
func (u User) EffectiveOffsets() Offsets {
	offsets := NormalizeOffsets(u.NotificationOffsets)
	if len(offsets) == 0 {
		return DefaultOffsets()
	}
	return offsets
}

// Webhook returns the Slack webhook URL or "" when unset.
func (u User) Webhook() string {
	if u.SlackWebhookURL == nil {
		return ""
	}
	return *u.SlackWebhookURL
}

// Preferences extracts the settings resource from the user record.
func (u User) Preferences() NotificationPreferences {
	return NotificationPreferences{
		EmailEnabled:        u.EmailEnabled,
		SlackEnabled:        u.SlackEnabled,
		SlackWebhookURL:     u.SlackWebhookURL,
		InAppEnabled:        u.InAppEnabled,
		NotificationOffsets: NormalizeOffsets(u.NotificationOffsets),
	}
}

// NotificationPreferences is the per-user settings resource exposed to the SPA.
type NotificationPreferences struct {
	EmailEnabled        bool    `json:"is_email_notification_enabled" db:"is_email_notification_enabled"`
	SlackEnabled        bool    `json:"is_slack_notification_enabled" db:"is_slack_notification_enabled"`
	SlackWebhookURL     *string `json:"slack_webhook_url" db:"slack_webhook_url"`
	InAppEnabled        bool    `json:"in_app_alerts_enabled" db:"in_app_alerts_enabled"`
	NotificationOffsets Offsets `json:"notification_time_offsets" db:"notification_time_offsets"`
}
