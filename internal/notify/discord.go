package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// embedColor is the sidebar colour of alert embeds.
const embedColor = 0x2b6cb0

// Discord caps embed descriptions at 4096 characters.
const maxEmbedDescription = 4096

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender posts alerts as embeds to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender returns a sender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Send posts one embed. A 429 is retried once after the delay Discord asks
// for, bounded by ctx.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	if r := []rune(message); len(r) > maxEmbedDescription {
		message = string(r[:maxEmbedDescription-1]) + "…"
	}
	body, err := json.Marshal(discordPayload{
		Username: "polyarb",
		Embeds: []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       embedColor,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	retry, err := d.post(ctx, body)
	if err != nil || retry == 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("discord: rate limited: %w", ctx.Err())
	case <-time.After(retry):
	}
	if retry, err = d.post(ctx, body); err == nil && retry > 0 {
		return fmt.Errorf("discord: still rate limited after %s", retry)
	}
	return err
}

// post sends body once. A non-zero duration means Discord rate limited the
// request and asked to retry after it.
func (d *DiscordSender) post(ctx context.Context, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("discord: post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		secs, _ := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
		return max(time.Duration(secs*float64(time.Second)), 100*time.Millisecond), nil
	case resp.StatusCode/100 != 2:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("discord: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return 0, nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
