// Package mailer renders reports and delivers them by email.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"io"
	"log"
	"net/mail"
	"net/smtp"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/naka-gawa/github-taskmail/internal/config"
	"github.com/naka-gawa/github-taskmail/internal/domain"
)

//go:embed templates/*.tmpl
var templates embed.FS

var funcs = template.FuncMap{
	"kindLabel": func(k domain.Kind) string {
		if k == domain.KindPullRequest {
			return "Pull request"
		}
		return "Issue"
	},
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
}

// Renderer turns a payload into a message body.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded default template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("default.txt.tmpl").Funcs(funcs).ParseFS(templates, "templates/default.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template with p.
func (r *Renderer) Render(p domain.Payload) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("failed to render report of %s: %w", p.Assignee, err)
	}
	return buf.String(), nil
}

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers reports through an SMTP server.
type SMTPMailer struct {
	smtp     config.SMTPConfig
	mail     config.MailConfig
	sender   *mail.Address
	renderer *Renderer
	send     SendFunc
	logger   *log.Logger
}

// NewSMTPMailer creates a mailer for the given transport and message settings.
// It fails when no sender address can be derived from mail.from or smtp.username.
func NewSMTPMailer(smtpCfg config.SMTPConfig, mailCfg config.MailConfig, renderer *Renderer, logger *log.Logger) (*SMTPMailer, error) {
	sender, err := Sender(mailCfg.From, smtpCfg.Username)
	if err != nil {
		return nil, err
	}
	m := &SMTPMailer{
		smtp:     smtpCfg,
		mail:     mailCfg,
		sender:   sender,
		renderer: renderer,
		logger:   logger,
	}
	m.send = smtp.SendMail
	if smtpCfg.UseTLS {
		m.send = m.sendTLS
	}
	return m, nil
}

// Sender returns the From address. A bare display name such as "Chiquita" is paired
// with the SMTP username, which must then be an email address.
func Sender(from, username string) (*mail.Address, error) {
	if a, err := mail.ParseAddress(from); err == nil {
		return a, nil
	}
	u, err := mail.ParseAddress(username)
	if err != nil {
		return nil, fmt.Errorf("mail.from %q has no address and smtp.username %q is not an email address", from, username)
	}
	return &mail.Address{Name: strings.TrimSpace(from), Address: u.Address}, nil
}

// IsConfigured reports whether an SMTP host is set.
func (m *SMTPMailer) IsConfigured() bool {
	return m.smtp.Host != ""
}

// Deliver renders p and sends it to the given address. The returned token is the Message-ID.
func (m *SMTPMailer) Deliver(ctx context.Context, to string, p domain.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !m.IsConfigured() {
		return "", fmt.Errorf("smtp host is not configured")
	}
	body, err := m.renderer.Render(p)
	if err != nil {
		return "", err
	}
	messageID := newMessageID(m.smtp.Host)
	msg := compose(m.sender.String(), to, m.mail.Subject, messageID, body, time.Now())

	addr := fmt.Sprintf("%s:%d", m.smtp.Host, m.smtp.Port)
	var auth smtp.Auth
	if m.smtp.Username != "" {
		auth = smtp.PlainAuth("", m.smtp.Username, m.smtp.Password, m.smtp.Host)
	}
	if err := m.send(addr, auth, m.sender.Address, []string{to}, msg); err != nil {
		return "", fmt.Errorf("smtp: %w", err)
	}
	m.logger.Printf("Mail %s sent to %s", messageID, to)
	return messageID, nil
}

// sendTLS is smtp.SendMail over an implicit TLS connection.
func (m *SMTPMailer) sendTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.smtp.Host})
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}
	defer conn.Close()
	client, err := smtp.NewClient(conn, m.smtp.Host)
	if err != nil {
		return err
	}
	defer client.Close()
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func newMessageID(host string) string {
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}

func compose(from, to, subject, messageID, body string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// Writer is a dry-run deliverer that prints every message instead of sending it.
type Writer struct {
	mu       sync.Mutex
	out      io.Writer
	mail     config.MailConfig
	renderer *Renderer
}

// NewWriter creates a dry-run deliverer writing to out.
func NewWriter(out io.Writer, mailCfg config.MailConfig, renderer *Renderer) *Writer {
	return &Writer{out: out, mail: mailCfg, renderer: renderer}
}

func (w *Writer) Deliver(_ context.Context, to string, p domain.Payload) (string, error) {
	body, err := w.renderer.Render(p)
	if err != nil {
		return "", err
	}
	messageID := newMessageID("dry-run")
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintf(w.out, "From: %s\nTo: %s\nSubject: %s\nMessage-ID: %s\n\n%s\n", w.mail.From, to, w.mail.Subject, messageID, body)
	if err != nil {
		return "", err
	}
	return messageID, nil
}
