package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// webhookPayload is the wire shape posted to the configured endpoint.
type webhookPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Color     int    `json:"color"`
	Timestamp string `json:"timestamp"`
	Footer    string `json:"footer"`
}

// Webhook posts messages as JSON to a webhook-style endpoint. Delivery counts
// as confirmed on any 2xx status; everything else, including transport
// errors, reports delivered=false so the caller skips its dedup commits.
type Webhook struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhook creates a webhook notifier for the given endpoint.
func NewWebhook(url string, timeout time.Duration, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	metrics.Init()
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify delivers one message and reports whether delivery was confirmed.
func (w *Webhook) Notify(ctx context.Context, msg watch.Message) bool {
	payload := webhookPayload{
		Title:     msg.Title,
		Body:      msg.Body,
		Color:     msg.Color,
		Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
		Footer:    msg.Footer,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("marshal webhook payload", zap.Error(err))
		metrics.ObserveDelivery("failed")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		w.logger.Error("build webhook request", zap.Error(err))
		metrics.ObserveDelivery("failed")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Error("webhook delivery failed", zap.Error(err))
		metrics.ObserveDelivery("failed")
		return false
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.logger.Error("webhook delivery rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("title", msg.Title),
		)
		metrics.ObserveDelivery("failed")
		return false
	}

	w.logger.Info("notification delivered", zap.String("title", msg.Title))
	metrics.ObserveDelivery("delivered")
	return true
}
