package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.local", Port: 2525, Username: "u", Password: "p", From: "exports@aevon.dev"})

	var gotAddr string
	var got *email.Email
	m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		require.NotNil(t, auth)
		got, gotAddr = e, addr
		return nil
	}

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Export ready", Body: "link"})
	require.NoError(t, err)
	require.Equal(t, "smtp.local:2525", gotAddr)
	require.Equal(t, "exports@aevon.dev", got.From)
	require.Equal(t, []string{"a@example.com"}, got.To)
	require.Equal(t, []byte("link"), got.Text)
}

func TestSMTPMailer_MessageFromOverrides(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.local", Port: 25, From: "default@aevon.dev"})
	var from string
	m.send = func(e *email.Email, _ string, _ smtp.Auth) error {
		from = e.From
		return nil
	}
	require.NoError(t, m.Send(context.Background(), Message{From: "reports@aevon.dev", To: []string{"a@example.com"}, Subject: "s"}))
	require.Equal(t, "reports@aevon.dev", from)
}

func TestSMTPMailer_NoAuthWithoutUsername(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.local", Port: 25})
	m.send = func(_ *email.Email, _ string, auth smtp.Auth) error {
		require.Nil(t, auth)
		return nil
	}
	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s"}))
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.local", Port: 25})
	m.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s"})
	require.ErrorContains(t, err, "connection refused")
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"valid", Message{To: []string{"a@example.com"}, Subject: "s"}, true},
		{"no recipients", Message{Subject: "s"}, false},
		{"blank recipient", Message{To: []string{" "}, Subject: "s"}, false},
		{"no subject", Message{To: []string{"a@example.com"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestLogMailer_Send(t *testing.T) {
	require.NoError(t, LogMailer{}.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s"}))
	require.Error(t, LogMailer{}.Send(context.Background(), Message{}))
}
