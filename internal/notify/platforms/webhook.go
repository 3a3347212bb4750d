package platforms

import (
	"context"
	"strings"
)

// WebhookAdapter posts the raw event as JSON. A secret is sent as a bearer
// token.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	var headers map[string]string
	if s := strings.TrimSpace(secret); s != "" {
		headers = map[string]string{"Authorization": "Bearer " + s}
	}
	body := msg.Data
	if body == nil {
		body = map[string]any{"title": msg.Title, "description": msg.Description}
	}
	return a.client.PostJSON(ctx, endpoint, headers, body)
}
