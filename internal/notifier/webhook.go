package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"alertengine/internal/errors"
	"alertengine/internal/models"
)

// WebhookConfig points at a single HTTP destination. In production each
// action's destination id resolves to one of these via an external
// destination registry; that registry is out of scope here.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

type webhookPayload struct {
	ActionID      string `json:"action_id"`
	DestinationID string `json:"destination_id"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	Principal     string `json:"principal"`
}

// Webhook is the one reference Notifier implementation shipped with the
// engine; it posts a JSON payload to a single configured URL.
type Webhook struct {
	client *http.Client
	cfg    WebhookConfig
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

func (w *Webhook) Notify(ctx context.Context, actionID, subject, body, destinationID string, principal models.Principal) error {
	if body == "" {
		return errors.NewKind(errors.KindValidation, fmt.Sprintf("action %s: rendered message is empty", actionID))
	}

	payload := webhookPayload{
		ActionID:      actionID,
		DestinationID: destinationID,
		Subject:       subject,
		Body:          body,
		Principal:     principal.Name,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return errors.WrapKind(err, errors.KindFatal, "encoding webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(encoded))
	if err != nil {
		return errors.WrapKind(err, errors.KindFatal, "building webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.WrapKind(ctx.Err(), errors.KindCancelled, "webhook notify cancelled")
		}
		return errors.WrapKind(err, errors.KindTransient, "webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.NewKind(errors.KindTransient, "webhook destination rate limited")
	}
	if resp.StatusCode >= 300 {
		return errors.NewKind(errors.KindFatal, fmt.Sprintf("webhook destination returned status %d", resp.StatusCode))
	}
	return nil
}
