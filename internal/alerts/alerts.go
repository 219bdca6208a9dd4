// internal/alerts/alerts.go - Status change alerting
package alerts

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"watchtower/internal/store"
)

// Sender is the outbound messaging capability alerts are delivered
// through. Delivery errors are opaque to the dispatcher.
type Sender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Dispatcher formats and sends a notification for a check whose state
// transitioned. Alerting is best-effort: the state change has already been
// persisted by the time the dispatcher runs, and a delivery failure never
// rolls it back.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

func (d *Dispatcher) StatusChange(ctx context.Context, check store.Check) error {
	message := fmt.Sprintf("Alert: Your check for %s %s://%s is currently %s",
		strings.ToUpper(check.Method), check.Protocol, check.URL, check.State)

	if err := d.sender.SendSMS(ctx, check.UserPhone, message); err != nil {
		return fmt.Errorf("failed to send alert sms: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"check": check.ID,
		"phone": check.UserPhone,
		"state": check.State,
	}).Info("Alerted user to status change")
	return nil
}
