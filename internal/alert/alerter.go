package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zkUSD-Protocol/services/internal/metrics"
)

// AlertType categorizes the kind of alert.
type AlertType string

const (
	AlertTypeCycleTimeout   AlertType = "CYCLE_TIMEOUT"
	AlertTypeWorkerExit     AlertType = "WORKER_EXIT"
	AlertTypeStartupFailure AlertType = "STARTUP_FAILURE"
	AlertTypeCycleError     AlertType = "CYCLE_ERROR"
	AlertTypeRecovery       AlertType = "RECOVERY"
	AlertTypeVaultDrift     AlertType = "VAULT_DRIFT"
)

// Alert represents a single alert event.
type Alert struct {
	Type    AlertType
	Network string
	Title   string
	Message string
	Fields  map[string]string
}

// Alerter is the interface for sending alerts.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// channeled lets MultiAlerter label metrics without knowing each concrete
// sender type.
type channeled interface {
	channel() string
}

func channelName(a Alerter) string {
	if c, ok := a.(channeled); ok {
		return c.channel()
	}
	return "unknown"
}

// MultiAlerter fans out alerts to multiple channels, suppressing repeats of
// the same (type, network) pair inside the cooldown window.
type MultiAlerter struct {
	alerters []Alerter
	cooldown time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewMultiAlerter creates a new multi-channel alerter with cooldown.
func NewMultiAlerter(cooldown time.Duration, logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{
		alerters: alerters,
		cooldown: cooldown,
		logger:   logger.With("component", "alerter"),
		lastSent: make(map[string]time.Time),
	}
}

// Send dispatches alert to every channel. One failing channel does not stop
// the others; the first error is returned after all have been tried.
func (m *MultiAlerter) Send(ctx context.Context, alert Alert) error {
	key := fmt.Sprintf("%s:%s", alert.Type, alert.Network)
	if m.suppress(key) {
		m.logger.Debug("alert suppressed by cooldown", "key", key)
		for _, a := range m.alerters {
			metrics.AlertsCooldownSkipped.WithLabelValues(channelName(a), string(alert.Type)).Inc()
		}
		return nil
	}

	var firstErr error
	for _, a := range m.alerters {
		err := a.Send(ctx, alert)
		if err == nil {
			metrics.AlertsSentTotal.WithLabelValues(channelName(a), string(alert.Type)).Inc()
			continue
		}
		m.logger.Warn("alert send failed",
			"channel", channelName(a),
			"type", alert.Type,
			"error", err,
		)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// suppress reports whether the key is still cooling down, marking it sent
// otherwise.
func (m *MultiAlerter) suppress(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastSent[key]; ok && time.Since(last) < m.cooldown {
		return true
	}
	m.lastSent[key] = time.Now()
	return false
}

// slackEmoji picks the leading emoji per alert type; anything unmapped gets
// a plain warning sign.
var slackEmoji = map[AlertType]string{
	AlertTypeCycleTimeout:   ":alarm_clock:",
	AlertTypeWorkerExit:     ":rotating_light:",
	AlertTypeStartupFailure: ":no_entry:",
	AlertTypeRecovery:       ":white_check_mark:",
	AlertTypeVaultDrift:     ":scales:",
}

// SlackAlerter sends alerts to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

// NewSlackAlerter creates a Slack alerter with the given webhook URL.
func NewSlackAlerter(webhookURL string) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackAlerter) channel() string { return "slack" }

// Send renders the alert as one Slack message, fields as a bullet list.
func (s *SlackAlerter) Send(ctx context.Context, alert Alert) error {
	emoji, ok := slackEmoji[alert.Type]
	if !ok {
		emoji = ":warning:"
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s *[%s]* oracle-engine/%s: %s\n%s",
		emoji, alert.Type, alert.Network, alert.Title, alert.Message)
	if len(alert.Fields) > 0 {
		text.WriteString("\n")
		for k, v := range alert.Fields {
			fmt.Fprintf(&text, "- *%s*: %s\n", k, v)
		}
	}

	return postJSON(ctx, s.client, s.webhookURL, map[string]string{"text": text.String()}, "slack")
}

// WebhookAlerter posts the alert as plain JSON to an arbitrary endpoint.
type WebhookAlerter struct {
	url    string
	client *http.Client
}

// NewWebhookAlerter creates a generic webhook alerter.
func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookAlerter) channel() string { return "webhook" }

// Send posts the alert verbatim plus the service name and a timestamp.
func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	payload := map[string]any{
		"type":    string(alert.Type),
		"service": "oracle-engine",
		"network": alert.Network,
		"title":   alert.Title,
		"message": alert.Message,
		"fields":  alert.Fields,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	return postJSON(ctx, w.client, w.url, payload, "webhook")
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, label string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", label, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", label, resp.StatusCode)
	}
	return nil
}

// NoopAlerter does nothing. Used when no alert channels are configured.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
