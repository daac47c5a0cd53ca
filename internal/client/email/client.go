package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"faaxis/internal/metrics"
)

// Templates rendered by the email service.
const (
	TemplateAdminCode     = "admin_login_code"
	TemplatePasswordReset = "password_reset"
	TemplateVerifyEmail   = "verify_email"
)

type EmailRequest struct {
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

type EmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RetryCount      int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	retryCount int
	breaker    *gobreaker.CircuitBreaker[struct{}]
}

func NewClient(opts Options, logger *logrus.Logger) *Client {
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		baseURL: opts.BaseURL,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger:     logger,
		retryCount: opts.RetryCount,
	}

	c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "email",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Email circuit breaker state changed")
		},
	})

	return c
}

func (c *Client) SendEmail(ctx context.Context, req *EmailRequest) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.sendWithRetry(ctx, req)
	})
	if err != nil {
		metrics.EmailSends.WithLabelValues(req.Template, metrics.OutcomeError).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("email service unavailable: %w", err)
		}
		return err
	}

	metrics.EmailSends.WithLabelValues(req.Template, metrics.OutcomeSuccess).Inc()
	return nil
}

func (c *Client) sendWithRetry(ctx context.Context, req *EmailRequest) error {
	var lastErr error

	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt":  attempt,
				"template": req.Template,
			}).Info("Retrying email send")

			select {
			case <-ctx.Done():
				return fmt.Errorf("email send cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		err := c.sendEmailOnce(ctx, req)
		if err == nil {
			return nil
		}

		lastErr = err
		c.logger.WithFields(logrus.Fields{
			"attempt":  attempt,
			"error":    err.Error(),
			"template": req.Template,
		}).Error("Failed to send email")
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", c.retryCount+1, lastErr)
}

func (c *Client) sendEmailOnce(ctx context.Context, req *EmailRequest) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal email request: %w", err)
	}

	url := fmt.Sprintf("%s/email/send", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	var emailResp EmailResponse
	if err := json.NewDecoder(resp.Body).Decode(&emailResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !emailResp.Success {
		return fmt.Errorf("email service returned error: %s", emailResp.Message)
	}

	c.logger.WithFields(logrus.Fields{
		"template": req.Template,
	}).Info("Email sent successfully")

	return nil
}

func (c *Client) SendAdminCodeEmail(ctx context.Context, to, code string, ttl time.Duration) error {
	return c.SendEmail(ctx, &EmailRequest{
		To:       to,
		Subject:  "Your FA Axis admin verification code",
		Template: TemplateAdminCode,
		Variables: map[string]string{
			"code":   code,
			"expiry": formatExpiry(ttl),
		},
	})
}

func (c *Client) SendPasswordResetEmail(ctx context.Context, to, link string, ttl time.Duration) error {
	return c.SendEmail(ctx, &EmailRequest{
		To:       to,
		Subject:  "Reset your FA Axis password",
		Template: TemplatePasswordReset,
		Variables: map[string]string{
			"link":   link,
			"expiry": formatExpiry(ttl),
		},
	})
}

func (c *Client) SendVerificationEmail(ctx context.Context, to, link string, ttl time.Duration) error {
	return c.SendEmail(ctx, &EmailRequest{
		To:       to,
		Subject:  "Verify your FA Axis account",
		Template: TemplateVerifyEmail,
		Variables: map[string]string{
			"link":   link,
			"expiry": formatExpiry(ttl),
		},
	})
}

func formatExpiry(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		hours := int(ttl / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case ttl >= time.Minute:
		minutes := int(ttl / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	default:
		return ttl.String()
	}
}
