package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sumire/billnotify/internal/domain"
	"github.com/sumire/billnotify/internal/notify"
	"github.com/sumire/billnotify/internal/service"
)

// NotificationHandler serves the notification stream, settings and diagnostics.
type NotificationHandler struct {
	svc          *service.NotificationService
	hub          *notify.Hub
	heartbeat    time.Duration
	writeTimeout time.Duration
	now          func() time.Time
}

// NewNotificationHandler creates a new NotificationHandler. heartbeat is the
// interval between keep-alive comments on open streams; writeTimeout bounds
// every frame written to a stream.
func NewNotificationHandler(svc *service.NotificationService, hub *notify.Hub, heartbeat, writeTimeout time.Duration) *NotificationHandler {
	return &NotificationHandler{
		svc:          svc,
		hub:          hub,
		heartbeat:    heartbeat,
		writeTimeout: writeTimeout,
		now:          time.Now,
	}
}

// Stream holds a server-sent events connection open for the caller until
// the client goes away or the hub shuts down.
func (h *NotificationHandler) Stream(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	stream := notify.NewStream(res, http.NewResponseController(res.Writer), h.writeTimeout)
	h.hub.Register(userID, stream)
	defer func() {
		h.hub.Deregister(userID, stream)
		stream.Close()
	}()

	greeting, err := json.Marshal(notify.Event{
		Type:    notify.EventConnected,
		Message: "Connected to notification stream",
		SentAt:  h.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal greeting: %w", err)
	}
	if err := stream.WriteEvent(greeting); err != nil {
		slog.Debug("stream closed before greeting", "user_id", userID, "error", err)
		return nil
	}
	slog.Info("notification stream opened", "user_id", userID, "connections", h.hub.Connections(userID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			slog.Info("notification stream closed", "user_id", userID)
			return nil
		case <-h.hub.Done():
			return nil
		case <-ticker.C:
			if err := stream.WriteComment("ping"); err != nil {
				slog.Debug("heartbeat failed", "user_id", userID, "error", err)
				return nil
			}
		}
	}
}

// GetSettings returns the caller's notification preferences.
func (h *NotificationHandler) GetSettings(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	prefs, err := h.svc.GetPreferences(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, prefs)
}

type updateSettingsRequest struct {
	EmailEnabled        *bool          `json:"is_email_notification_enabled"`
	SlackEnabled        *bool          `json:"is_slack_notification_enabled"`
	SlackWebhookURL     nullableString `json:"slack_webhook_url" validate:"omitempty,url"`
	InAppEnabled        *bool          `json:"in_app_alerts_enabled"`
	NotificationOffsets []int          `json:"notification_time_offsets" validate:"omitempty,dive,gte=0,lte=365"`
}

// apply overlays the fields present in the request onto current.
func (r updateSettingsRequest) apply(current domain.NotificationPreferences) domain.NotificationPreferences {
	if r.EmailEnabled != nil {
		current.EmailEnabled = *r.EmailEnabled
	}
	if r.SlackEnabled != nil {
		current.SlackEnabled = *r.SlackEnabled
	}
	if r.SlackWebhookURL.Set {
		current.SlackWebhookURL = r.SlackWebhookURL.Value
	}
	if r.InAppEnabled != nil {
		current.InAppEnabled = *r.InAppEnabled
	}
	if r.NotificationOffsets != nil {
		current.NotificationOffsets = r.NotificationOffsets
	}
	return current
}

// UpdateSettings changes the fields present in the body and returns the stored result.
func (h *NotificationHandler) UpdateSettings(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var req updateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	current, err := h.svc.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}

	prefs, err := h.svc.UpdatePreferences(ctx, userID, req.apply(*current))
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, prefs)
}

// TestSlack posts a diagnostic message to the caller's Slack webhook.
func (h *NotificationHandler) TestSlack(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	if err := h.svc.SendTestSlack(c.Request().Context(), userID); err != nil {
		return err
	}
	return JSON(c, http.StatusOK, map[string]bool{"sent": true})
}

// TestInApp pushes a diagnostic event to the caller's open streams.
func (h *NotificationHandler) TestInApp(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	result, err := h.svc.SendTestInApp(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, result)
}

type historyRequest struct {
	Limit int `query:"limit" validate:"gte=0,lte=200"`
}

// History lists the caller's recent reminders, newest first.
func (h *NotificationHandler) History(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var req historyRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrInvalidInput
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	entries, err := h.svc.History(c.Request().Context(), userID, req.Limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.NotificationLogEntry{}
	}
	return JSON(c, http.StatusOK, entries)
}
