// internal/notifications/twilio.go - Twilio SMS delivery
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"watchtower/internal/config"
)

const (
	userAgent = "Watchtower Uptime Monitor/1.0"

	// Twilio rejects message bodies longer than this.
	maxMessageLength = 1600
)

// TwilioClient sends SMS messages through the Twilio REST API.
type TwilioClient struct {
	config     *config.TwilioConfig
	httpClient *http.Client
}

func NewTwilioClient(cfg *config.TwilioConfig) *TwilioClient {
	return &TwilioClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SendSMS delivers one message to the recipient phone. The phone is the
// bare 10-digit identifier stored on the user record; the configured
// country prefix is prepended before submission.
func (c *TwilioClient) SendSMS(ctx context.Context, phone, message string) error {
	phone = strings.TrimSpace(phone)
	message = strings.TrimSpace(message)

	if len(phone) != 10 {
		return fmt.Errorf("invalid recipient phone: %q", phone)
	}
	if message == "" || len(message) > maxMessageLength {
		return fmt.Errorf("invalid message length: %d", len(message))
	}

	form := url.Values{}
	form.Set("From", c.config.FromPhone)
	form.Set("To", c.config.CountryPrefix+phone)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.config.APIURL, c.config.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build twilio request: %w", err)
	}
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach twilio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, string(body))
	}

	logrus.WithField("to", c.config.CountryPrefix+phone).Debug("SMS submitted to Twilio")
	return nil
}

// LogSender is a stand-in delivery channel used when Twilio is disabled.
// Messages are written to the process log instead of being sent.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) SendSMS(ctx context.Context, phone, message string) error {
	logrus.WithFields(logrus.Fields{
		"phone":   phone,
		"message": message,
	}).Info("SMS delivery disabled, logging alert instead")
	return nil
}
