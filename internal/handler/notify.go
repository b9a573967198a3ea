package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RajaMuhammadAwais/AiOps/internal/model"
)

// Notifier delivers one alert notification to a team channel.
type Notifier interface {
	Notify(ctx context.Context, alert *model.AlertRecord, message string) error
}

// NotifyTeamHandler routes notifications to named channels. The channel
// comes from the rule's params ("channel"); with a single registered
// channel that one is used regardless.
type NotifyTeamHandler struct {
	logger   *zap.Logger
	channels map[string]Notifier
}

// NewNotifyTeamHandler creates a notify handler with no channels.
func NewNotifyTeamHandler(logger *zap.Logger) *NotifyTeamHandler {
	return &NotifyTeamHandler{
		logger:   logger.Named("notify"),
		channels: make(map[string]Notifier),
	}
}

// RegisterChannel wires a named notification channel.
func (h *NotifyTeamHandler) RegisterChannel(name string, n Notifier) {
	h.channels[name] = n
}

// Kind returns the action kind this handler serves.
func (h *NotifyTeamHandler) Kind() model.ActionKind {
	return model.ActionNotifyTeam
}

// Execute sends the alert to the resolved channel.
func (h *NotifyTeamHandler) Execute(ctx context.Context, action model.ActionSpec, alert *model.AlertRecord) (*model.ActionOutcome, error) {
	name := action.Params["channel"]
	notifier, ok := h.channels[name]
	if !ok && len(h.channels) == 1 {
		for fallback, n := range h.channels {
			name, notifier, ok = fallback, n, true
		}
	}
	if !ok {
		return &model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("no notification channel named %q", name),
		}, nil
	}

	message := formatAlertMessage(alert)
	h.logger.Info("notifying team",
		zap.String("channel", name),
		zap.String("alert_id", alert.ID))

	if err := notifier.Notify(ctx, alert, message); err != nil {
		return &model.ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("notification via %s failed: %v", name, err),
		}, nil
	}
	return &model.ActionOutcome{
		Success: true,
		Message: fmt.Sprintf("team notified via %s", name),
		Details: map[string]interface{}{"channel": name},
	}, nil
}

// formatAlertMessage renders a short human-readable summary.
func formatAlertMessage(alert *model.AlertRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Name, alert.Message)
	if svc := alert.Labels["service"]; svc != "" {
		fmt.Fprintf(&sb, " (service: %s)", svc)
	}
	for _, m := range alert.Metrics {
		fmt.Fprintf(&sb, " %s=%.2f", m.Name, m.Value)
	}
	return sb.String()
}

// WebhookNotifier posts alert notifications as JSON to an HTTP
// endpoint.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookNotifier creates a webhook notifier with a bounded request
// timeout.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("webhook"),
	}
}

// Notify posts the alert and summary to the webhook.
func (w *WebhookNotifier) Notify(ctx context.Context, alert *model.AlertRecord, message string) error {
	payload, err := json.Marshal(struct {
		Text  string             `json:"text"`
		Alert *model.AlertRecord `json:"alert"`
	}{Text: message, Alert: alert})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailNotifier sends alert notifications over SMTP.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	logger   *zap.Logger
}

// NewEmailNotifier creates an SMTP notifier.
func NewEmailNotifier(host string, port int, username, password, from string, to []string, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		logger:   logger.Named("email"),
	}
}

// Notify mails the alert summary to the configured recipients.
func (e *EmailNotifier) Notify(_ context.Context, alert *model.AlertRecord, message string) error {
	if len(e.to) == 0 {
		return fmt.Errorf("no recipients configured")
	}

	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: [%s] %s\r\n"+
		"\r\n"+
		"%s\r\n",
		e.from,
		strings.Join(e.to, ", "),
		strings.ToUpper(string(alert.Severity)),
		alert.Name,
		message)

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	return smtp.SendMail(addr, auth, e.from, e.to, []byte(msg))
}
