package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogChannel writes summaries to the structured log. It is the default
// fallback transport and never fails.
type LogChannel struct {
	Logger *logrus.Logger
}

// Send implements Channel.
func (c *LogChannel) Send(_ context.Context, summary Summary) error {
	c.Logger.WithFields(logrus.Fields{
		"kind":             summary.Kind,
		"id":               summary.ID,
		"severity":         summary.Severity,
		"component":        summary.Component,
		"escalation_level": summary.EscalationLevel,
	}).Warnf("NOTIFICATION: %s", summary.Title)
	return nil
}

// WebhookChannel POSTs summaries as JSON to a configured endpoint. Slack,
// Teams and PagerDuty integrations are all served through webhook
// bridges, so this is the workhorse external transport.
type WebhookChannel struct {
	URL    string
	Client *http.Client
}

// NewWebhookChannel creates a webhook transport with a bounded client
// timeout as a second line of defense behind the per-attempt context.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookChannel{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

// Send implements Channel.
func (c *WebhookChannel) Send(ctx context.Context, summary Summary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Broadcaster is the capability the dashboard channel needs from the
// websocket hub.
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{}) error
}

// DashboardChannel pushes summaries to connected dashboard clients over
// the websocket hub.
type DashboardChannel struct {
	Hub Broadcaster
}

// Send implements Channel.
func (c *DashboardChannel) Send(_ context.Context, summary Summary) error {
	return c.Hub.BroadcastEvent("notification", summary)
}
