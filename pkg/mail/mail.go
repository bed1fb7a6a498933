// Package mail sends transactional email over SMTP.
//
//	err := mail.To(order.Email).
//	    Subject("We received your order #1a2b3c4d").
//	    HTML(body).
//	    Text(plain).
//	    Send()
//
// A message with both an HTML and a text part goes out as
// multipart/alternative. Port 465 uses implicit TLS; other ports upgrade
// with STARTTLS when the server offers it.
package mail

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/shashiranjanraj/foodie/config"
)

// ErrNotConfigured is returned by the SMTP sender when MAIL_USERNAME is unset.
var ErrNotConfigured = errors.New("mail: MAIL_USERNAME not configured")

type Server struct {
	Host     string
	Port     string
	Username string
	Password string
	From     mail.Address
}

// ServerFromConfig reads the MAIL_* keys.
func ServerFromConfig() Server {
	return Server{
		Host:     config.Get("MAIL_HOST", "localhost"),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From: mail.Address{
			Name:    config.Get("MAIL_FROM_NAME", "Foodie"),
			Address: config.Get("MAIL_FROM", "orders@foodie.local"),
		},
	}
}

// Configured reports whether outgoing mail has credentials.
func Configured() bool { return ServerFromConfig().Username != "" }

// Sender delivers a message. The default talks SMTP; tests swap it.
type Sender func(m *Message) error

var send Sender = func(m *Message) error { return m.server.deliver(m) }

// UseSender installs s and returns a func restoring the previous sender.
func UseSender(s Sender) (restore func()) {
	prev := send
	send = s
	return func() { send = prev }
}

type Message struct {
	to      []string
	subject string
	html    string
	text    string
	server  Server
}

func To(addresses ...string) *Message {
	return &Message{to: addresses, server: ServerFromConfig()}
}

func (m *Message) Subject(s string) *Message { m.subject = s; return m }
func (m *Message) HTML(body string) *Message { m.html = body; return m }
func (m *Message) Text(body string) *Message { m.text = body; return m }

// Via sends through srv instead of the configured server.
func (m *Message) Via(srv Server) *Message { m.server = srv; return m }

func (m *Message) Recipients() []string { return m.to }
func (m *Message) SubjectLine() string  { return m.subject }
func (m *Message) HTMLBody() string     { return m.html }
func (m *Message) TextBody() string     { return m.text }

func (m *Message) Send() error {
	if len(m.to) == 0 {
		return errors.New("mail: no recipients")
	}
	if m.html == "" && m.text == "" {
		return errors.New("mail: empty body")
	}
	return send(m)
}

// Bytes renders the message as RFC 5322 text.
func (m *Message) Bytes(from mail.Address) ([]byte, error) {
	var buf bytes.Buffer
	h := textproto.MIMEHeader{}
	h.Set("From", from.String())
	h.Set("To", strings.Join(m.to, ", "))
	h.Set("Subject", mime.QEncoding.Encode("utf-8", m.subject))
	h.Set("Date", time.Now().Format(time.RFC1123Z))
	h.Set("MIME-Version", "1.0")

	switch {
	case m.html != "" && m.text != "":
		mw := multipart.NewWriter(&buf)
		h.Set("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
		writeHeader(&buf, h)
		for _, part := range []struct{ kind, body string }{{"text/plain", m.text}, {"text/html", m.html}} {
			w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.kind + "; charset=utf-8"}})
			if err != nil {
				return nil, err
			}
			if _, err := w.Write([]byte(part.body)); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
	case m.html != "":
		h.Set("Content-Type", "text/html; charset=utf-8")
		writeHeader(&buf, h)
		buf.WriteString(m.html)
	default:
		h.Set("Content-Type", "text/plain; charset=utf-8")
		writeHeader(&buf, h)
		buf.WriteString(m.text)
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, h textproto.MIMEHeader) {
	for _, k := range []string{"From", "To", "Subject", "Date", "MIME-Version", "Content-Type"} {
		fmt.Fprintf(buf, "%s: %s\r\n", k, h.Get(k))
	}
	buf.WriteString("\r\n")
}

func (s Server) deliver(m *Message) error {
	if s.Username == "" {
		return ErrNotConfigured
	}
	raw, err := m.Bytes(s.From)
	if err != nil {
		return fmt.Errorf("mail: render: %w", err)
	}

	addr := net.JoinHostPort(s.Host, s.Port)
	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	if s.Port != "465" {
		// SendMail upgrades with STARTTLS when offered.
		return smtp.SendMail(addr, auth, s.From.Address, m.to, raw)
	}

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("mail: auth: %w", err)
	}
	if err := c.Mail(s.From.Address); err != nil {
		return err
	}
	for _, rcpt := range m.to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
