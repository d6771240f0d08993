package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/atelier-ops/atelier-api/pkg/config"
)

// Message is a single outbound transactional email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers transactional email best-effort.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendgridSender delivers mail through the SendGrid v3 API.
type SendgridSender struct {
	key    string
	from   *sgmail.Email
	logger *zap.Logger
}

// NewSendgridSender builds a sender from mail configuration.
func NewSendgridSender(cfg config.MailConfig, logger *zap.Logger) *SendgridSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendgridSender{
		key:    cfg.APIKey,
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// Send delivers a single message. Non-2xx API responses are returned as
// errors so the dispatch queue can retry.
func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)

	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))
	m.AddPersonalizations(p)

	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	req := sendgrid.GetRequest(s.key, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send email: sendgrid status %d: %s", res.StatusCode, res.Body)
	}

	s.logger.Debug("email sent", zap.String("to", msg.ToEmail), zap.String("subject", msg.Subject))
	return nil
}

// NopSender drops every message. Used when mail delivery is disabled.
type NopSender struct{}

// Send implements Sender.
func (NopSender) Send(context.Context, Message) error { return nil }
