package email

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"sync"
	"testing"
	"time"

	"notifycenter/internal/center"
	logx "notifycenter/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smtpMessage struct {
	Header mail.Header
	Body   string
}

// smtpServer speaks just enough SMTP to capture messages.
type smtpServer struct {
	Host string
	Port int

	l    net.Listener
	wg   sync.WaitGroup
	mu   sync.Mutex
	msgs []smtpMessage
}

func newSMTPServer(t *testing.T) *smtpServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s := &smtpServer{Host: host, Port: port, l: l}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				s.handle(conn)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		s.wg.Wait()
	})
	return s
}

func (s *smtpServer) handle(conn net.Conn) {
	tc := textproto.NewConn(conn)
	_ = tc.PrintfLine("220 hello")
	for {
		line, err := tc.ReadLine()
		if err != nil || len(line) < 4 {
			return
		}
		switch line[:4] {
		case "EHLO", "HELO", "MAIL", "RCPT":
			_ = tc.PrintfLine("250 Ok")
		case "DATA":
			_ = tc.PrintfLine("354 Go ahead")
			msg, err := mail.ReadMessage(tc.DotReader())
			if err != nil {
				return
			}
			body, _ := io.ReadAll(msg.Body)
			s.mu.Lock()
			s.msgs = append(s.msgs, smtpMessage{Header: msg.Header, Body: string(body)})
			s.mu.Unlock()
			_ = tc.PrintfLine("250 Ok")
		case "QUIT":
			_ = tc.PrintfLine("221 Goodbye")
			return
		default:
			_ = tc.PrintfLine("250 Ok")
		}
	}
}

func (s *smtpServer) messages() []smtpMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]smtpMessage(nil), s.msgs...)
}

func TestSendDeliversMessage(t *testing.T) {
	srv := newSMTPServer(t)
	s := New([]Mailer{{Name: "home", Host: srv.Host, Port: srv.Port, From: "alarm@example.com", FromName: "Alarm"}}, logx.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := s.Send(ctx,
		center.Recipient{Name: "Owner", Ref: "home", Address: "owner@example.com"},
		center.Content{Title: "Battery low", Body: "Sensor 4 battery low", Type: center.TypeBattery},
	)
	require.True(t, res.OK, res.Diagnostic)

	msgs := srv.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Battery low", msgs[0].Header.Get("Subject"))
	assert.Contains(t, msgs[0].Header.Get("To"), "owner@example.com")
	assert.Contains(t, msgs[0].Header.Get("From"), "alarm@example.com")
	assert.Equal(t, "battery", msgs[0].Header.Get("X-Notification-Type"))
	assert.Contains(t, msgs[0].Body, "Sensor 4 battery low")
}

func TestSendUnknownMailer(t *testing.T) {
	s := New(nil, logx.Nop())
	res := s.Send(context.Background(), center.Recipient{Ref: "missing", Address: "a@b.c"}, center.Content{})
	assert.False(t, res.OK)
	assert.Contains(t, res.Diagnostic, `unknown mailer "missing"`)
}

func TestSendConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	s := New([]Mailer{{Name: "dead", Host: "127.0.0.1", Port: addr.Port, From: "a@example.com"}}, logx.Nop())
	res := s.Send(context.Background(), center.Recipient{Ref: "dead", Address: "b@example.com"}, center.Content{Title: "x"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Diagnostic, fmt.Sprintf("smtp 127.0.0.1:%d", addr.Port))
}

func TestUpdateReplacesMailers(t *testing.T) {
	s := New([]Mailer{{Name: "a"}}, logx.Nop())
	s.Update([]Mailer{{Name: "b"}})
	_, ok := s.mailer("a")
	assert.False(t, ok)
	_, ok = s.mailer("b")
	assert.True(t, ok)
}
