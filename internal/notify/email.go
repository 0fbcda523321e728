package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/sha1n/invitewatch/internal/domain"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// SSL selects implicit TLS; otherwise STARTTLS is required.
	SSL     bool
	Timeout time.Duration
}

// sender is the part of *mail.Client the notifier needs.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Email sends one digest message per batch over SMTP.
type Email struct {
	cfg  EmailConfig
	dial func() (sender, error)
	now  func() time.Time
}

// NewEmail validates cfg and returns an Email notifier.
func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sender address is required")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	e := &Email{cfg: cfg, now: time.Now}
	e.dial = e.newClient
	return e, nil
}

func (e *Email) newClient() (sender, error) {
	opts := []mail.Option{mail.WithTimeout(e.cfg.Timeout)}
	if e.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	if e.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(e.cfg.Port))
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}

	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client, nil
}

// Send implements monitor.Notifier. An empty batch sends nothing.
func (e *Email) Send(ctx context.Context, codes []domain.CodeCandidate) error {
	if len(codes) == 0 {
		return nil
	}

	msg, err := e.message(codes)
	if err != nil {
		return err
	}

	client, err := e.dial()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Email sent", "codes", len(codes), "to", e.cfg.To)
	return nil
}

func (e *Email) message(codes []domain.CodeCandidate) (*mail.Msg, error) {
	htmlBody, textBody, err := Render(codes, e.now())
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", e.cfg.From, err)
	}
	if err := msg.To(e.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(Subject(codes))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, textBody)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	return msg, nil
}
