package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailSenderBuildsMessage(t *testing.T) {
	s, err := NewEmailSender("smtp.example.com", 587, "user", "pass", "no-reply@julo.co.id")
	require.NoError(t, err)

	var captured *email.Email
	var capturedAddr string
	s.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		captured, capturedAddr = e, addr
		assert.NotNil(t, auth)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: "budi@example.com", Subject: "OTP", Body: "123456"}))
	assert.Equal(t, "smtp.example.com:587", capturedAddr)
	assert.Equal(t, []string{"budi@example.com"}, captured.To)
	assert.Equal(t, "no-reply@julo.co.id", captured.From)
	assert.Equal(t, "123456", string(captured.Text))
}

func TestEmailSenderWrapsErrors(t *testing.T) {
	s, err := NewEmailSender("smtp.example.com", 25, "", "", "no-reply@julo.co.id")
	require.NoError(t, err)
	s.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

	err = s.Send(context.Background(), Message{To: "x@example.com"})
	assert.ErrorContains(t, err, "connection refused")

	_, err = NewEmailSender("", 25, "", "", "a@b.c")
	assert.Error(t, err)
}

func TestSMSSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got["to"] == "+620000" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSMSSender(srv.URL+"/", "key", "JULO")
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), Message{To: "+6281234567890", Body: "hello"}))
	assert.Equal(t, "JULO", got["from"])
	assert.Equal(t, "hello", got["text"])

	assert.Error(t, s.Send(context.Background(), Message{To: "+620000"}))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "*********7890", mask("+628123457890"))
	assert.Equal(t, "***", mask("abc"))
}
