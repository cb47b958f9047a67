package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/storeit/backend/internal/config"
	"github.com/storeit/backend/pkg/logger"
)

type fakeSender struct {
	sent *mail.SGMailV3
	resp *rest.Response
	err  error
}

func (f *fakeSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = email
	return f.resp, f.err
}

var testMessage = CodeMessage{AccountID: "acct-1", Code: "123456", Issuer: "StoreIt", ExpiresIn: 15 * time.Minute}

func TestSendGridMailer(t *testing.T) {
	tests := []struct {
		name    string
		sender  *fakeSender
		wantErr string
	}{
		{name: "accepted", sender: &fakeSender{resp: &rest.Response{StatusCode: 202}}},
		{name: "transport error", sender: &fakeSender{err: errors.New("dial tcp: timeout")}, wantErr: "while sending mail"},
		{name: "rejected", sender: &fakeSender{resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}}, wantErr: "non-2XX response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSendGridMailer(tt.sender, "StoreIt", "no-reply@storeit.local")
			err := m.SendOneTimeCode(context.Background(), "alice@x.com", testMessage)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sent := tt.sender.sent
			if sent.From.Address != "no-reply@storeit.local" {
				t.Errorf("unexpected from %s", sent.From.Address)
			}
			if len(sent.Personalizations) != 1 || sent.Personalizations[0].To[0].Address != "alice@x.com" {
				t.Errorf("expected one recipient alice@x.com, got %+v", sent.Personalizations)
			}
			if !strings.Contains(sent.Content[0].Value, "123456") {
				t.Errorf("expected code in body, got %q", sent.Content[0].Value)
			}
		})
	}
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(&buf)

	if err := m.SendOneTimeCode(context.Background(), "bob@x.com", testMessage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "To: bob@x.com") || !strings.Contains(out, "123456") || !strings.Contains(out, "15m0s") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.MailConfig{Provider: "pigeon"}); err == nil {
		t.Error("expected unknown provider to fail")
	}
	m, err := New(config.MailConfig{Provider: "sendgrid", SendGridAPIKey: "SG.test", FromAddress: "a@b.c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(*SendGridMailer); !ok {
		t.Errorf("expected *SendGridMailer, got %T", m)
	}
}

func TestMailersKeepRecipientOutOfLogs(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	t.Cleanup(func() { logger.Init("info") })

	senders := []Mailer{
		NewSendGridMailer(&fakeSender{resp: &rest.Response{StatusCode: 202}}, "StoreIt", "no-reply@storeit.local"),
		NewLogMailer(&bytes.Buffer{}),
	}
	for _, m := range senders {
		if err := m.SendOneTimeCode(context.Background(), "alice@x.com", testMessage); err != nil {
			t.Fatalf("%T send failed: %v", m, err)
		}
	}

	out := logs.String()
	if strings.Contains(out, "alice@x.com") {
		t.Errorf("expected recipient address to stay out of logs, got %s", out)
	}
	if strings.Count(out, `"account_id":"acct-1"`) != 2 {
		t.Errorf("expected both sends to log the account id, got %s", out)
	}
}
