package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSendAdminCodeEmail(t *testing.T) {
	var got EmailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(EmailResponse{Success: true})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, newTestLogger())

	err := c.SendAdminCodeEmail(context.Background(), "admin@example.com", "123456", 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", got.To)
	assert.Equal(t, TemplateAdminCode, got.Template)
	assert.Equal(t, "123456", got.Variables["code"])
	assert.Equal(t, "10 minutes", got.Variables["expiry"])
}

func TestSendEmail_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(EmailResponse{Success: false, Message: "mailbox unavailable"})
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, newTestLogger())

	err := c.SendPasswordResetEmail(context.Background(), "a@example.com", "http://x/reset", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")
}

func TestSendEmail_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, newTestLogger())

	for i := 0; i < 2; i++ {
		err := c.SendVerificationEmail(context.Background(), "a@example.com", "http://x/verify", 24*time.Hour)
		require.Error(t, err)
	}

	err := c.SendVerificationEmail(context.Background(), "a@example.com", "http://x/verify", 24*time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFormatExpiry(t *testing.T) {
	assert.Equal(t, "1 hour", formatExpiry(time.Hour))
	assert.Equal(t, "24 hours", formatExpiry(24*time.Hour))
	assert.Equal(t, "10 minutes", formatExpiry(10*time.Minute))
	assert.Equal(t, "1 minute", formatExpiry(time.Minute))
	assert.Equal(t, "30s", formatExpiry(30*time.Second))
}
