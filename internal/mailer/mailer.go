// Package mailer delivers one-time sign-in codes by email.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/pkg/logger"
)

type Mailer interface {
	SendOneTimeCode(ctx context.Context, to string, msg CodeMessage) error
}

// CodeMessage is one code email. AccountID is only used in logs, so the
// recipient address never reaches them.
type CodeMessage struct {
	AccountID string
	Code      string
	Issuer    string
	ExpiresIn time.Duration
}

const codePlain = `Your {{.Issuer}} sign-in code is {{.Code}}

It expires in {{.ExpiresIn}}. If you did not try to sign in you can ignore this email.
`

var codePlainTemplate = template.Must(template.New("code").Parse(codePlain))

func render(msg CodeMessage) (string, error) {
	buf := &bytes.Buffer{}
	if err := codePlainTemplate.Execute(buf, msg); err != nil {
		return "", fmt.Errorf("while templating plain-text email content: %w", err)
	}
	return buf.String(), nil
}

func New(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		return NewSendGridMailer(sendgrid.NewSendClient(cfg.SendGridAPIKey), cfg.FromName, cfg.FromAddress), nil
	case "log":
		return NewLogMailer(os.Stderr), nil
	default:
		return nil, fmt.Errorf("unknown mail provider: %q", cfg.Provider)
	}
}

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridMailer struct {
	client sender
	from   *mail.Email
}

func NewSendGridMailer(client sender, fromName, fromAddress string) *SendGridMailer {
	return &SendGridMailer{client: client, from: mail.NewEmail(fromName, fromAddress)}
}

func (m *SendGridMailer) SendOneTimeCode(ctx context.Context, to string, msg CodeMessage) error {
	message := mail.NewV3Mail()
	message.From = m.from
	message.Subject = fmt.Sprintf("Your %s sign-in code", msg.Issuer)

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail("", to))
	message.Personalizations = append(message.Personalizations, personalization)

	body, err := render(msg)
	if err != nil {
		return err
	}
	message.Content = append(message.Content, mail.NewContent("text/plain", body))

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through SendGrid: %d %s", resp.StatusCode, resp.Body)
	}

	logger.Info("otp_email_sent", map[string]interface{}{
		"provider":   "sendgrid",
		"account_id": msg.AccountID,
	})
	return nil
}

// LogMailer writes rendered messages to a local writer instead of sending
// them. Development only: the code appears in clear text.
type LogMailer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLogMailer(out io.Writer) *LogMailer {
	return &LogMailer{out: out}
}

func (m *LogMailer) SendOneTimeCode(ctx context.Context, to string, msg CodeMessage) error {
	body, err := render(msg)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := fmt.Fprintf(m.out, "To: %s\n\n%s\n", to, body); err != nil {
		return err
	}

	logger.Info("otp_email_sent", map[string]interface{}{
		"provider":   "log",
		"account_id": msg.AccountID,
	})
	return nil
}
