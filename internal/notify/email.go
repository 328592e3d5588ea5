package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/sumire/billnotify/internal/domain"
)

// Email is a rendered message ready for a Mailer.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer hands an email to a relay.
type Mailer interface {
	SendMail(ctx context.Context, msg Email) error
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends mail through an SMTP relay with go-mail.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates an SMTPMailer. It does not dial until the first send.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendMail dials the relay and delivers msg.
func (m *SMTPMailer) SendMail(ctx context.Context, msg Email) error {
	mm := mail.NewMsg()
	if err := mm.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from %q: %w", m.cfg.From, err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("set recipient %q: %w", msg.To, err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		mm.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

var reminderEmailTmpl = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Bill Reminder</h2>
  <p>{{.Message}}</p>
  <table style="border-collapse: collapse;">
    <tr><td style="padding: 4px 12px 4px 0;"><strong>Bill</strong></td><td>{{.Name}}</td></tr>
    <tr><td style="padding: 4px 12px 4px 0;"><strong>Amount</strong></td><td>${{.Amount}}</td></tr>
    <tr><td style="padding: 4px 12px 4px 0;"><strong>Due date</strong></td><td>{{.DueDate}}</td></tr>
  </table>
  {{if .Link}}<p><a href="{{.Link}}">View bill</a></p>{{end}}
  <p style="font-size: 12px; color: #888;">You can change reminder settings in your notification preferences.</p>
</body>
</html>`))

// EmailSender renders reminders as HTML mail.
type EmailSender struct {
	mailer      Mailer
	frontendURL string
}

// NewEmailSender creates an EmailSender. A nil mailer disables the channel.
func NewEmailSender(mailer Mailer, frontendURL string) *EmailSender {
	return &EmailSender{mailer: mailer, frontendURL: frontendURL}
}

func (s *EmailSender) Channel() domain.Channel { return domain.ChannelEmail }

// Send emails the reminder. Users without email enabled or without an
// address are skipped.
func (s *EmailSender) Send(ctx context.Context, user domain.User, reminder domain.Reminder) error {
	if !user.EmailEnabled || user.Email == "" || s.mailer == nil {
		return ErrSkipped
	}

	msg, err := s.render(user, reminder)
	if err != nil {
		return err
	}
	return s.mailer.SendMail(ctx, msg)
}

func (s *EmailSender) render(user domain.User, reminder domain.Reminder) (Email, error) {
	bill := reminder.Bill
	data := struct {
		Message string
		Name    string
		Amount  string
		DueDate string
		Link    string
	}{
		Message: reminder.Text,
		Name:    bill.Name,
		Amount:  bill.Amount.StringFixed(2),
		DueDate: bill.DueDate.Format("January 2, 2006"),
		Link:    billLink(s.frontendURL, bill.ID),
	}

	var buf bytes.Buffer
	if err := reminderEmailTmpl.Execute(&buf, data); err != nil {
		return Email{}, fmt.Errorf("render reminder email: %w", err)
	}

	return Email{
		To:      user.Email,
		Subject: fmt.Sprintf("Bill Reminder: %s Due Soon!", bill.Name),
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s Amount: $%s. Due date: %s.", reminder.Text, data.Amount, data.DueDate),
	}, nil
}

func billLink(frontendURL string, billID int64) string {
	if frontendURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/bills/%d", frontendURL, billID)
}
