package notifier

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/fatflowers/repairdesk/pkg/config"
	"github.com/fatflowers/repairdesk/pkg/logctx"
)

// smtpTimeout caps a whole SMTP session when the caller sets no deadline.
const smtpTimeout = 20 * time.Second

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through a relay. Header encoding and MIME assembly
// are left to go-mail.
type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// dialWithDeadline carries the dial context's deadline onto the connection.
// go-mail only bounds the dial itself, so a relay that accepts and then
// never greets would otherwise hold the session open.
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// LogSender writes messages to the log instead of delivering them. It is the
// default outside environments with a mail relay.
type LogSender struct {
	log *zap.SugaredLogger
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	logctx.FromCtx(ctx, s.log).Infow("email_logged", "to", msg.To, "subject", msg.Subject, "html_bytes", len(msg.HTML))
	return nil
}

func NewSender(cfg *config.Config, log *zap.SugaredLogger) (Sender, error) {
	if cfg.Mail.Enabled && cfg.Mail.Host != "" {
		s, err := NewSMTPSender(cfg.Mail)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return &LogSender{log: log}, nil
}
