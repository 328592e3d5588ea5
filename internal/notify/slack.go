package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/sumire/billnotify/internal/domain"
)

// SlackSender posts reminders to the user's Slack incoming webhook.
type SlackSender struct {
	client      *http.Client
	frontendURL string
}

// NewSlackSender creates a SlackSender whose requests time out after timeout.
func NewSlackSender(timeout time.Duration, frontendURL string) *SlackSender {
	return &SlackSender{
		client:      &http.Client{Timeout: timeout},
		frontendURL: frontendURL,
	}
}

func (s *SlackSender) Channel() domain.Channel { return domain.ChannelSlack }

// Send posts the reminder. Users without Slack enabled or without a webhook
// URL are skipped.
func (s *SlackSender) Send(ctx context.Context, user domain.User, reminder domain.Reminder) error {
	if !user.SlackEnabled || user.Webhook() == "" {
		return ErrSkipped
	}
	return s.post(ctx, user.Webhook(), reminderMessage(reminder, billLink(s.frontendURL, reminder.Bill.ID)))
}

// SendTest posts a one-off diagnostic message to webhookURL regardless of
// the user's Slack toggle.
func (s *SlackSender) SendTest(ctx context.Context, webhookURL string) error {
	if webhookURL == "" {
		return domain.ErrSlackWebhookMissing
	}
	text := "This is a test notification from your bill tracker. Slack reminders are working."
	return s.post(ctx, webhookURL, &slack.WebhookMessage{
		Text: text,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, ":white_check_mark: "+text, false, false), nil, nil),
		}},
	})
}

func (s *SlackSender) post(ctx context.Context, webhookURL string, msg *slack.WebhookMessage) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, webhookURL, s.client, msg)
	if err == nil {
		return nil
	}

	var statusErr slack.StatusCodeError
	if errors.As(err, &statusErr) {
		return &domain.UpstreamError{Service: "slack webhook", StatusCode: statusErr.Code, Status: statusErr.Status}
	}
	return fmt.Errorf("post slack webhook: %w", err)
}

func reminderMessage(reminder domain.Reminder, link string) *slack.WebhookMessage {
	bill := reminder.Bill

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, "*Bill:*\n"+bill.Name, false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Amount:*\n$"+bill.Amount.StringFixed(2), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Due date:*\n"+bill.DueDate.Format("January 2, 2006"), false, false),
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, ":bell: "+reminder.Text, false, false),
			fields, nil,
		),
	}
	if link != "" {
		button := slack.NewButtonBlockElement("view_bill", fmt.Sprintf("%d", bill.ID),
			slack.NewTextBlockObject(slack.PlainTextType, "View Bill", false, false))
		button.URL = link
		blocks = append(blocks, slack.NewActionBlock("bill_actions", button))
	}

	return &slack.WebhookMessage{
		Text:   reminder.Text,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}
