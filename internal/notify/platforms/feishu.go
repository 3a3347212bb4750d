package platforms

import (
	"context"
	"strings"
)

type FeishuAdapter struct {
	client *HTTPClient
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client}
}

func (a *FeishuAdapter) Name() string {
	return "feishu"
}

func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	cardFields := make([]map[string]string, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		cardFields = append(cardFields, map[string]string{
			"tag":  "markdown",
			"text": "**" + f.Name + "**: " + f.Value,
		})
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title": map[string]any{
					"tag":     "plain_text",
					"content": msg.Title,
				},
				"template": "blue",
			},
			"elements": append([]map[string]string{{
				"tag":  "markdown",
				"text": fallback(msg.Description, msg.Content),
			}}, cardFields...),
		},
	}
	headers := map[string]string{}
	if sig := strings.TrimSpace(secret); sig != "" {
		headers["X-Lark-Signature"] = sig
	}
	return a.client.PostJSON(ctx, endpoint, headers, payload)
}

func fallback(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
