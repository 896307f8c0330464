package smtpmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"EmailAutomation/internal/config"
	"EmailAutomation/internal/domain"
	"EmailAutomation/internal/ports"
)

// Sender delivers replies through an SMTP relay. Each send uses a fresh
// connection; the relay is contacted rarely enough that pooling is not worth
// the reconnect bookkeeping.
type Sender struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

var _ ports.Responder = (*Sender)(nil)

func NewSender(cfg config.SMTPConfig, logger *slog.Logger) *Sender {
	return &Sender{cfg: cfg, logger: logger}
}

// Send replies to the original sender of msg with the draft text.
func (s *Sender) Send(ctx context.Context, msg domain.EmailMessage, reply domain.DraftReply) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", s.cfg.Email, s.cfg.Password)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(s.cfg.Email, nil); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.Sender, nil); err != nil {
		return fmt.Errorf("smtp rcpt to %s: %w", msg.Sender, err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(buildReply(s.cfg.Email, msg, reply)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write message body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("smtp quit", "error", err)
	}

	s.logger.Info("reply sent", "to", msg.Sender, "in_reply_to", msg.MessageID)
	return nil
}

// Ping dials the relay and issues a NOOP.
func (s *Sender) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Noop(); err != nil {
		return fmt.Errorf("smtp noop: %w", err)
	}
	_ = c.Quit()
	return nil
}

func (s *Sender) dial() (*smtp.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: s.cfg.Host,
	}

	var (
		c   *smtp.Client
		err error
	)
	if s.cfg.UseStartTLS {
		c, err = smtp.DialStartTLS(s.cfg.Addr(), tlsConfig)
	} else {
		c, err = smtp.DialTLS(s.cfg.Addr(), tlsConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("dial smtp %s: %w", s.cfg.Addr(), err)
	}
	return c, nil
}

// buildReply renders the RFC 5322 reply. Drafts may carry their own subject
// as a leading "Subject:" line; otherwise the original subject is reused with
// a "Re:" prefix.
func buildReply(from string, msg domain.EmailMessage, reply domain.DraftReply) []byte {
	subject, body := splitSubject(reply.Text, msg.Subject)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Sender)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "In-Reply-To: %s\r\n", msg.MessageID)
	fmt.Fprintf(&b, "References: %s\r\n", msg.MessageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func splitSubject(text, originalSubject string) (subject, body string) {
	subject = originalSubject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	body = text

	first, rest, _ := strings.Cut(text, "\n")
	if strings.HasPrefix(first, "Subject:") {
		subject = strings.TrimSpace(strings.TrimPrefix(first, "Subject:"))
		body = strings.TrimLeft(rest, "\n")
	}
	return subject, body
}
