package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/subrelay/app/relay"
)

const (
	discordContentLimit = 1000
	discordContentKeep  = 997
	discordColor        = 0x03b2f8
)

var _ Sink = (*Discord)(nil)

// Discord posts one embed per message to a webhook.
type Discord struct {
	httpClient *http.Client
	webhookURL string
}

func NewDiscord(httpClient *http.Client, webhookURL string) *Discord {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Discord{
		httpClient: httpClient,
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string {
	return "discord"
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (d *Discord) Send(ctx context.Context, post relay.AcceptedPost) error {
	payload, err := json.Marshal(discordPayload{Embeds: []discordEmbed{buildEmbed(NewMessage(post))}})
	if err != nil {
		return fmt.Errorf("failed to encode discord embed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call discord webhook: %w: %s", ErrDeliveryFailed, redact(err.Error(), d.webhookURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook failed: %w: HTTP %d %s", ErrDeliveryFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

func buildEmbed(m Message) discordEmbed {
	embed := discordEmbed{
		Title:       "New Post from " + m.Header(),
		Description: m.Title,
		Color:       discordColor,
		Fields: []discordField{
			{Name: "Posted", Value: m.Elapsed, Inline: true},
			{Name: "URL", Value: m.URL, Inline: true},
		},
	}

	if m.Body != "" {
		embed.Fields = append(embed.Fields, discordField{
			Name:  "Content",
			Value: truncate(m.Body, discordContentLimit, discordContentKeep),
		})
	}

	return embed
}
