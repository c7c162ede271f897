package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const SignatureHeader = "X-Chiptally-Signature"

// WebhookAdapter posts the message as plain JSON. With a secret the body is
// signed with HMAC-SHA256 and the hex digest sent in SignatureHeader.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string { return "webhook" }

type webhookField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type webhookBody struct {
	Panel       string         `json:"panel,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      string         `json:"footer,omitempty"`
	Fields      []webhookField `json:"fields,omitempty"`
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	body := webhookBody{
		Panel:       msg.PanelKey,
		Title:       msg.Title,
		Description: msg.Description,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
	}
	for _, f := range msg.Fields {
		body.Fields = append(body.Fields, webhookField{Name: f.Name, Value: f.Value})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var headers map[string]string
	if secret != "" {
		headers = map[string]string{SignatureHeader: Sign(secret, raw)}
	}
	_, _, err = a.client.Post(ctx, endpoint, headers, raw)
	return err
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
