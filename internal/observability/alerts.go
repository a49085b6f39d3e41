package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/diveops-backend/internal/pkg/httpx"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

const alertTimeout = 5 * time.Second

// AlertSender posts JSON payloads to an operator webhook. Send is best-effort:
// failures are logged and never returned.
type AlertSender struct {
	log    *logger.Logger
	url    string
	client *http.Client
}

// NewAlertSender returns nil when webhookURL is empty; a nil sender drops alerts.
func NewAlertSender(log *logger.Logger, webhookURL string) *AlertSender {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil
	}
	return &AlertSender{
		log:    log.With("service", "AlertSender"),
		url:    webhookURL,
		client: &http.Client{Timeout: alertTimeout},
	}
}

func (a *AlertSender) Enabled() bool { return a != nil && a.url != "" }

// Send reports whether the webhook accepted the payload.
func (a *AlertSender) Send(ctx context.Context, payload any) bool {
	if !a.Enabled() {
		return false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		a.log.Warn("alert payload encode failed", "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(raw))
	if err != nil {
		a.log.Warn("alert request build failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn("alert delivery failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		a.log.Warn("alert webhook rejected payload", "error", &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(body)})
		return false
	}
	a.log.Info("alert delivered", "status", resp.StatusCode)
	return true
}
