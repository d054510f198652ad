package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Webhook posts operational alerts (generation failures, stream outages) to a
// configured HTTP endpoint. An empty URL disables it; callers never need to
// check.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type payload struct {
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Notify delivers an alert. Failures are logged, never propagated: alerting
// must not break the pipeline it reports on.
func (w *Webhook) Notify(ctx context.Context, subject, detail string) {
	if w.url == "" {
		return
	}

	body, err := json.Marshal(payload{
		Subject:   subject,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("marshaling alert payload", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("building alert request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		slog.Warn("delivering alert failed", "subject", subject, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.Warn("alert endpoint rejected payload", "subject", subject, "status", resp.StatusCode)
	}
}
