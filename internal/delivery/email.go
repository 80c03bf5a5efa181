package delivery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/osanchezp/loyaltynotify/internal/config"
)

// SMTPClient delivers email through the configured SMTP relay, one message
// per recipient so per-recipient personalization survives.
type SMTPClient struct {
	dialer *gomail.Dialer
	from   string
	log    zerolog.Logger
}

func NewSMTPClient(cfg config.SMTPConfig, log zerolog.Logger) *SMTPClient {
	return &SMTPClient{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    log,
	}
}

func (c *SMTPClient) SendEmail(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	if err := c.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	c.log.Debug().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
