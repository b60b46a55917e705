// Package email delivers notifications over SMTP. Recipients select a mailer
// profile by name.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"notifycenter/internal/center"
	logx "notifycenter/pkg/logx"

	"gopkg.in/gomail.v2"
)

// Mailer is one SMTP account.
type Mailer struct {
	Name     string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	SSL      bool
	NoVerify bool
}

type Sender struct {
	mu      sync.RWMutex
	mailers map[string]Mailer
	log     logx.Logger
}

func New(mailers []Mailer, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Sender{log: log.With(logx.String("comp", "email"))}
	s.Update(mailers)
	return s
}

// Update replaces the mailer profiles.
func (s *Sender) Update(mailers []Mailer) {
	m := make(map[string]Mailer, len(mailers))
	for _, ml := range mailers {
		m[ml.Name] = ml
	}
	s.mu.Lock()
	s.mailers = m
	s.mu.Unlock()
}

func (s *Sender) mailer(name string) (Mailer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mailers[name]
	return m, ok
}

// Send implements center.Sender.
func (s *Sender) Send(ctx context.Context, to center.Recipient, c center.Content) center.DeliveryResult {
	ml, ok := s.mailer(to.Ref)
	if !ok {
		return center.Failed("unknown mailer %q", to.Ref)
	}
	msg := buildMessage(ml, to, c)
	d := dialer(ml)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return center.Failed("smtp %s:%d: %v", ml.Host, ml.Port, err)
		}
		return center.Delivered()
	case <-ctx.Done():
		return center.Failed("smtp %s:%d: %v", ml.Host, ml.Port, ctx.Err())
	}
}

func dialer(m Mailer) *gomail.Dialer {
	var d *gomail.Dialer
	if m.Username == "" {
		d = &gomail.Dialer{Host: m.Host, Port: m.Port}
	} else {
		d = gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	}
	d.SSL = m.SSL || m.Port == 465
	if m.NoVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return d
}

func buildMessage(ml Mailer, to center.Recipient, c center.Content) *gomail.Message {
	m := gomail.NewMessage()
	if ml.FromName != "" {
		m.SetAddressHeader("From", ml.From, ml.FromName)
	} else {
		m.SetHeader("From", ml.From)
	}
	if to.Name != "" {
		m.SetAddressHeader("To", strings.TrimSpace(to.Address), to.Name)
	} else {
		m.SetHeader("To", strings.TrimSpace(to.Address))
	}
	m.SetHeader("Subject", c.Title)
	m.SetHeader("X-Notification-Type", c.Type.String())
	m.SetBody("text/plain", c.Body)
	return m
}

// Describe is a short label for logs, without credentials.
func (m Mailer) Describe() string {
	return fmt.Sprintf("%s (%s:%d)", m.Name, m.Host, m.Port)
}
