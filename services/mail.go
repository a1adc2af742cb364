package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/krshsl/interviewcoach/backend/metrics"
	"github.com/wneessen/go-mail"
)

// Message is a plain-text e-mail with optional attachments
type Message struct {
	Kind        string // welcome, password_reset, report
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Attachment struct {
	Name string
	Data []byte
}

// Mailer delivers e-mail
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer only logs outgoing messages. Used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	slog.Info("E-mail not sent, SMTP not configured", "kind", msg.Kind, "to", msg.To, "subject", msg.Subject)
	return nil
}

// SMTPMailer sends messages through an SMTP relay
type SMTPMailer struct {
	cfg     SMTPConfig
	metrics *metrics.Metrics
}

func NewSMTPMailer(cfg SMTPConfig, m *metrics.Metrics) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, metrics: m}
}

func (s *SMTPMailer) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Name, err)
		}
	}
	return m, nil
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		s.metrics.Email(msg.Kind, metrics.OutcomeFailure)
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		s.metrics.Email(msg.Kind, metrics.OutcomeFailure)
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.metrics.Email(msg.Kind, metrics.OutcomeFailure)
		return fmt.Errorf("failed to send e-mail: %w", err)
	}

	s.metrics.Email(msg.Kind, metrics.OutcomeSuccess)
	slog.Info("E-mail sent", "kind", msg.Kind, "to", msg.To)
	return nil
}

// NewMailer returns an SMTP mailer when a host is configured, a LogMailer otherwise
func NewMailer(cfg SMTPConfig, m *metrics.Metrics) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return NewSMTPMailer(cfg, m)
}
