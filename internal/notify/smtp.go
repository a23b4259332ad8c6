package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/nazarhussain/folio-courier/internal/logging"
	"github.com/nazarhussain/folio-courier/internal/store"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	// SSL selects implicit TLS (port 465 style) instead of STARTTLS.
	SSL bool
}

// SendFunc delivers one composed email.
type SendFunc func(ctx context.Context, e *email.Email) error

// SMTP mails the site owner about every stored message.
type SMTP struct {
	to            string
	from          string
	subjectPrefix string
	send          SendFunc
}

type SMTPOption func(*SMTP)

// WithSendFunc replaces the network delivery, mostly for tests.
func WithSendFunc(f SendFunc) SMTPOption {
	return func(s *SMTP) { s.send = f }
}

func NewSMTP(cfg SMTPConfig, to, from, subjectPrefix string, opts ...SMTPOption) *SMTP {
	s := &SMTP{
		to:            to,
		from:          from,
		subjectPrefix: subjectPrefix,
		send:          smtpSender(cfg),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func smtpSender(cfg SMTPConfig) SendFunc {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return func(ctx context.Context, e *email.Email) error {
		return deliver(ctx, addr, cfg.Host, cfg.SSL, auth, e)
	}
}

// deliver runs one SMTP exchange on a connection bound to ctx: the dial
// honours cancellation, the deadline covers every read and write, and a
// cancelled ctx closes the connection under a blocked exchange.
func deliver(ctx context.Context, addr, host string, implicitTLS bool, auth smtp.Auth, e *email.Email) error {
	raw, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("parse sender: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	tlsCfg := &tls.Config{ServerName: host}
	if implicitTLS {
		conn = tls.Client(conn, tlsCfg)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if !implicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, list := range [][]string{e.To, e.Cc, e.Bcc} {
		for _, r := range list {
			to, err := mail.ParseAddress(r)
			if err != nil {
				return fmt.Errorf("parse recipient: %w", err)
			}
			if err := c.Rcpt(to.Address); err != nil {
				return fmt.Errorf("smtp rcpt: %w", err)
			}
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return c.Quit()
}

func (s *SMTP) SendNotification(ctx context.Context, m store.Message) bool {
	log := logging.LoggerFromContext(ctx)
	if err := s.send(ctx, s.compose(m)); err != nil {
		log.Warn("notification failed", "message_id", m.ID, "err", err)
		return false
	}
	log.Info("notification sent", "message_id", m.ID, "to", s.to)
	return true
}

func (s *SMTP) compose(m store.Message) *email.Email {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{s.to}
	e.ReplyTo = []string{fmt.Sprintf("%s <%s>", headerSafe(m.Name), headerSafe(m.Email))}
	e.Subject = strings.TrimSpace(s.subjectPrefix + " " + headerSafe(m.Subject))
	e.Text = []byte(fmt.Sprintf(
		"New message from your website contact form:\n\nName: %s\nEmail: %s\nSubject: %s\n\nMessage:\n%s\n\nMessage id: %d\n",
		m.Name, m.Email, m.Subject, m.Message, m.ID,
	))
	e.HTML = []byte(fmt.Sprintf(
		"<h2>New message from your website contact form</h2>\n"+
			"<p><strong>Name:</strong> %s</p>\n"+
			"<p><strong>Email:</strong> %s</p>\n"+
			"<p><strong>Subject:</strong> %s</p>\n"+
			"<h3>Message:</h3>\n<p>%s</p>\n"+
			"<hr>\n<p><small>Message id %d</small></p>\n",
		html.EscapeString(m.Name),
		html.EscapeString(m.Email),
		html.EscapeString(m.Subject),
		strings.ReplaceAll(html.EscapeString(m.Message), "\n", "<br>"),
		m.ID,
	))
	return e
}

// headerSafe strips CR and LF so user input cannot add header lines.
func headerSafe(s string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}
