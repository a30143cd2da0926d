// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	FrontendURL string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender mails links through an SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPSender validates cfg and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").With("port", cfg.Port).Errorf("smtp port out of range")
	}
	if cfg.From == "" {
		return nil, oops.Code("NOTIFY_CONFIG_INVALID").Errorf("smtp from address is required")
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Send implements auth.Notifier. net/smtp has no context support, so ctx is
// only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, kind auth.NotificationKind, email, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_CANCELLED").Wrap(err)
	}
	link, err := Link(s.cfg.FrontendURL, kind, token)
	if err != nil {
		return err
	}

	var a smtp.Auth
	if s.cfg.Username != "" {
		a = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	msg := message(s.cfg.From, email, subjects[kind], link)

	if err := s.sendMail(addr, a, s.cfg.From, []string{email}, msg); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("kind", string(kind)).
			With("addr", addr).
			Wrap(err)
	}
	return nil
}

func message(from, to, subject, link string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s:\r\n\r\n%s\r\n\r\nIf you did not request this, ignore this email.\r\n", subject, link)
	return []byte(b.String())
}

var _ auth.Notifier = (*SMTPSender)(nil)
