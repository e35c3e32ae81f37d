package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/andymarkow/taskmart/internal/httpclient"
	"github.com/go-resty/resty/v2"
)

var ErrWebhookRejected = errors.New("webhook rejected event")

// Webhook posts every event as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *resty.Client
}

type WebhookOption func(w *Webhook)

func WithClient(client *resty.Client) WebhookOption {
	return func(w *Webhook) {
		w.client = client
	}
}

func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:    url,
		client: httpclient.New(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Webhook) Publish(ctx context.Context, event Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Event-Type", event.Type.String()).
		SetHeader("X-Event-ID", event.ID.String()).
		SetBody(event).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("client.R: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode())
	}

	return nil
}

func (w *Webhook) Close() error {
	return nil
}
