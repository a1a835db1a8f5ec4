// Package notify delivers run notifications to Discord, Slack, and
// generic webhook endpoints. The payload is shaped per endpoint kind,
// detected from the webhook URL
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type (
	// Kind identifies the webhook dialect a URL speaks
	Kind string

	// Payload is the endpoint-neutral notification content. Discord
	// renders it as an embed, Slack as an attachment, and generic
	// endpoints receive the message text alone
	Payload struct {
		Message   string
		Title     string
		Color     string
		Fields    []Field
		Username  string
		AvatarURL string
	}

	// Field is one name/value pair rendered inside an embed or
	// attachment
	Field struct {
		Name   string
		Value  string
		Inline bool
	}

	// Webhook posts notifications to a single endpoint
	Webhook struct {
		url    string
		kind   Kind
		client *http.Client
	}
)

const (
	KindDiscord Kind = "discord"
	KindSlack   Kind = "slack"
	KindGeneric Kind = "generic"

	// DefaultUsername is the sender name when a payload doesn't
	// override it
	DefaultUsername = "Taskkit"

	// DefaultTimeout bounds webhook delivery
	DefaultTimeout = 30 * time.Second
)

var (
	ErrDeliver = errors.New("failed to deliver webhook")
	ErrStatus  = errors.New("webhook returned error status")
)

// DetectKind recognizes the webhook dialect from its URL
func DetectKind(url string) Kind {
	switch {
	case strings.Contains(url, "discord.com/api/webhooks"),
		strings.Contains(url, "discordapp.com/api/webhooks"):
		return KindDiscord
	case strings.Contains(url, "hooks.slack.com"):
		return KindSlack
	default:
		return KindGeneric
	}
}

// NewWebhook creates a notifier for the endpoint URL
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		kind:   DetectKind(url),
		client: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithClient replaces the HTTP client used for delivery
func (w *Webhook) WithClient(c *http.Client) *Webhook {
	w.client = c
	return w
}

// Kind returns the detected webhook dialect
func (w *Webhook) Kind() Kind {
	return w.kind
}

// Send shapes the payload for the endpoint kind and posts it. Non-2xx
// responses are an error
func (w *Webhook) Send(ctx context.Context, p Payload) error {
	if p.Username == "" {
		p.Username = DefaultUsername
	}

	data, err := json.Marshal(w.body(p))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeliver, err)
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, w.url, bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeliver, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrDeliver, w.kind, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: %d", ErrStatus, w.kind, res.StatusCode)
	}
	return nil
}

func (w *Webhook) body(p Payload) map[string]any {
	switch w.kind {
	case KindDiscord:
		return discordBody(p)
	case KindSlack:
		return slackBody(p)
	default:
		return genericBody(p)
	}
}

// discordBody renders the payload as a Discord embed when it carries
// a title, color, or fields, and as plain content otherwise
func discordBody(p Payload) map[string]any {
	body := map[string]any{"username": p.Username}
	if p.AvatarURL != "" {
		body["avatar_url"] = p.AvatarURL
	}
	if p.Title == "" && p.Color == "" && len(p.Fields) == 0 {
		body["content"] = p.Message
		return body
	}

	embed := map[string]any{
		"description": p.Message,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if p.Title != "" {
		embed["title"] = p.Title
	}
	if c, ok := hexColor(p.Color); ok {
		embed["color"] = c
	}
	if len(p.Fields) > 0 {
		fields := make([]map[string]any, 0, len(p.Fields))
		for _, f := range p.Fields {
			fields = append(fields, map[string]any{
				"name":   f.Name,
				"value":  f.Value,
				"inline": f.Inline,
			})
		}
		embed["fields"] = fields
	}
	body["embeds"] = []map[string]any{embed}
	return body
}

// slackBody renders the payload as a Slack attachment when it carries
// a title, color, or fields, and as plain text otherwise
func slackBody(p Payload) map[string]any {
	body := map[string]any{"username": p.Username}
	if p.Title == "" && p.Color == "" && len(p.Fields) == 0 {
		body["text"] = p.Message
		return body
	}

	attachment := map[string]any{"text": p.Message}
	if p.Title != "" {
		attachment["title"] = p.Title
	}
	if p.Color != "" {
		// Slack colors are hex without the leading #
		attachment["color"] = strings.TrimPrefix(p.Color, "#")
	}
	if len(p.Fields) > 0 {
		fields := make([]map[string]any, 0, len(p.Fields))
		for _, f := range p.Fields {
			fields = append(fields, map[string]any{
				"title": f.Name,
				"value": f.Value,
				"short": f.Inline,
			})
		}
		attachment["fields"] = fields
	}
	body["attachments"] = []map[string]any{attachment}
	return body
}

func genericBody(p Payload) map[string]any {
	return map[string]any{
		"text":     p.Message,
		"username": p.Username,
	}
}

// hexColor converts a #rrggbb string to the integer form Discord
// embeds expect. Unparsable colors are dropped rather than failing
// the notification
func hexColor(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	c, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 16, 64)
	if err != nil {
		return 0, false
	}
	return c, true
}
