package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sceneit/apiserver/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	addr     string
	host     string
	user     string
	password string
	from     string
	sendMail sendMailFunc
}

// NewSMTPSender constructs an SMTP sender from config.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		return nil, errors.New("smtp server is required")
	}
	host, _, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_SERVER format (expected host:port): %w", err)
	}

	from := cfg.From
	if strings.TrimSpace(from) == "" {
		from = cfg.SMTPUser
	}

	return &SMTPSender{
		addr:     cfg.SMTPAddr,
		host:     host,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		sendMail: smtp.SendMail,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is required")
	}

	body, err := encode(s.from, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	if err := s.sendMail(s.addr, auth, envelopeAddress(s.from), []string{msg.To}, body); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", s.addr, err)
	}
	return nil
}

// envelopeAddress extracts the bare address from a "Name <addr>" header value.
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
