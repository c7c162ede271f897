package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// DiscordAdapter posts embeds to a Discord webhook. Panel messages are
// created once with ?wait=true and edited in place afterwards.
type DiscordAdapter struct {
	client *HTTPClient

	mu      sync.Mutex
	panelID map[string]string
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client, panelID: map[string]string{}}
}

func (a *DiscordAdapter) Name() string { return "discord" }

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Footer      map[string]string `json:"footer,omitempty"`
	Fields      []discordField    `json:"fields"`
}

func discordPayload(msg Message) map[string]any {
	embed := discordEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Fields:      make([]discordField, 0, len(msg.Fields)),
	}
	if msg.Footer != "" {
		embed.Footer = map[string]string{"text": msg.Footer}
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, discordField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return map[string]any{"embeds": []discordEmbed{embed}}
}

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, _ string, msg Message) error {
	payload := discordPayload(msg)
	panelKey := strings.TrimSpace(msg.PanelKey)
	if panelKey == "" {
		_, _, err := a.client.PostJSON(ctx, endpoint, nil, payload)
		return err
	}

	key := endpoint + "|" + panelKey
	if msgID := a.lookup(key); msgID != "" {
		editURL, ok := messageEditURL(endpoint, msgID)
		if ok {
			raw, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			_, _, err = a.client.Patch(ctx, editURL, nil, raw)
			var statusErr *StatusError
			if err == nil || !errors.As(err, &statusErr) || statusErr.Status != http.StatusNotFound {
				return err
			}
			// Message deleted on the Discord side; post a fresh one.
		}
	}

	msgID, err := a.create(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.panelID[key] = msgID
	a.mu.Unlock()
	return nil
}

// ForgetPanel drops the remembered message so the next send posts anew.
func (a *DiscordAdapter) ForgetPanel(endpoint, panelKey string) {
	a.mu.Lock()
	delete(a.panelID, strings.TrimSpace(endpoint)+"|"+strings.TrimSpace(panelKey))
	a.mu.Unlock()
}

func (a *DiscordAdapter) lookup(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.panelID[key]
}

func (a *DiscordAdapter) create(ctx context.Context, endpoint string, payload map[string]any) (string, error) {
	waitEndpoint := endpoint + "?wait=true"
	if strings.Contains(endpoint, "?") {
		waitEndpoint = endpoint + "&wait=true"
	}
	_, body, err := a.client.PostJSON(ctx, waitEndpoint, nil, payload)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &created) != nil || strings.TrimSpace(created.ID) == "" {
		return "", fmt.Errorf("discord webhook create message missing id")
	}
	return created.ID, nil
}

// messageEditURL turns /api/webhooks/{id}/{token} into the edit URL for msgID.
func messageEditURL(endpoint, msgID string) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || msgID == "" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "webhooks" {
		return "", false
	}
	u.Path = "/api/webhooks/" + parts[2] + "/" + parts[3] + "/messages/" + msgID
	u.RawQuery = ""
	return u.String(), true
}
