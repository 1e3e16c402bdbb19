package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

type EmailSender struct {
	host     string
	port     int32
	username string
	password string
	from     string
	send     sendFunc
}

func NewEmailSender(host string, port int32, username, password, from string) (*EmailSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("missing SMTP_HOST")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("missing SENDER_EMAIL")
	}
	return &EmailSender{
		host:     strings.TrimSpace(host),
		port:     port,
		username: username,
		password: password,
		from:     from,
		send:     func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}, nil
}

func (s *EmailSender) Send(_ context.Context, msg Message) error {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := s.send(e, addr, auth); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
