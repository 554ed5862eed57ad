package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"TrendWatch/internal/domain/models"
)

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTP sends the HTML report as an email.
type SMTP struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	n := &SMTP{cfg: cfg, now: time.Now}
	n.send = n.dialAndSend
	return n
}

func (n *SMTP) Notify(ctx context.Context, report models.Report) error {
	if len(n.cfg.To) == 0 {
		return errors.New("smtp: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.message(report)
	if err != nil {
		return fmt.Errorf("smtp message: %w", err)
	}
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *SMTP) message(report models.Report) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(n.cfg.To...); err != nil {
		return nil, err
	}
	msg.Subject(report.Subject)
	msg.SetDateWithValue(n.now())
	msg.SetBodyString(mail.TypeTextHTML, report.HTML)
	return msg, nil
}

func (n *SMTP) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(n.cfg.Timeout),
	}
	if n.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(n.cfg.Port))
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password),
		)
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	return client.DialAndSendWithContext(ctx, msg)
}
