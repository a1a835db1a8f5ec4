package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/taskkit/internal/notify"
)

// capture records every webhook body posted to a test server. Kind
// detection works on URL substrings, so appending a recognizable path
// to the server URL selects the dialect under test
type capture struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func newCaptureServer(t *testing.T) (*capture, *httptest.Server) {
	t.Helper()
	c := &capture{}
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t,
				"application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			c.mu.Lock()
			c.bodies = append(c.bodies, body)
			c.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		},
	))
	t.Cleanup(server.Close)
	return c, server
}

func (c *capture) last(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.bodies)
	return c.bodies[len(c.bodies)-1]
}

func TestDetectKind(t *testing.T) {
	for _, tc := range []struct {
		url  string
		kind notify.Kind
	}{
		{"https://discord.com/api/webhooks/123/tok", notify.KindDiscord},
		{"https://discordapp.com/api/webhooks/123/tok", notify.KindDiscord},
		{"https://hooks.slack.com/services/T/B/X", notify.KindSlack},
		{"https://ntfy.example.net/alerts", notify.KindGeneric},
		{"http://localhost:8080/hook", notify.KindGeneric},
	} {
		assert.Equal(t, tc.kind, notify.DetectKind(tc.url), tc.url)
	}
}

func TestSendGeneric(t *testing.T) {
	c, server := newCaptureServer(t)
	hook := notify.NewWebhook(server.URL + "/hook")
	require.Equal(t, notify.KindGeneric, hook.Kind())

	err := hook.Send(context.Background(), notify.Payload{
		Message: "deploy finished",
	})
	require.NoError(t, err)

	body := c.last(t)
	assert.Equal(t, "deploy finished", body["text"])
	assert.Equal(t, notify.DefaultUsername, body["username"])
}

func TestSendDiscord(t *testing.T) {
	t.Run("plain_message", func(t *testing.T) {
		c, server := newCaptureServer(t)
		hook := notify.NewWebhook(server.URL + "/discord.com/api/webhooks/1")
		require.Equal(t, notify.KindDiscord, hook.Kind())

		err := hook.Send(context.Background(), notify.Payload{
			Message:  "hello",
			Username: "deploy-bot",
		})
		require.NoError(t, err)

		body := c.last(t)
		assert.Equal(t, "hello", body["content"])
		assert.Equal(t, "deploy-bot", body["username"])
		assert.NotContains(t, body, "embeds")
	})

	t.Run("embed", func(t *testing.T) {
		c, server := newCaptureServer(t)
		hook := notify.NewWebhook(server.URL + "/discord.com/api/webhooks/1")

		err := hook.Send(context.Background(), notify.Payload{
			Message: "run finished",
			Title:   "Workflow Succeeded",
			Color:   "#2ecc71",
			Fields: []notify.Field{
				{Name: "Task ID", Value: "abc123", Inline: true},
			},
		})
		require.NoError(t, err)

		body := c.last(t)
		embeds, ok := body["embeds"].([]any)
		require.True(t, ok)
		require.Len(t, embeds, 1)

		embed, ok := embeds[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Workflow Succeeded", embed["title"])
		assert.Equal(t, "run finished", embed["description"])
		assert.Equal(t, float64(0x2ecc71), embed["color"])
		assert.NotEmpty(t, embed["timestamp"])

		fields, ok := embed["fields"].([]any)
		require.True(t, ok)
		require.Len(t, fields, 1)
		field, ok := fields[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Task ID", field["name"])
		assert.Equal(t, "abc123", field["value"])
		assert.Equal(t, true, field["inline"])
	})
}

func TestSendSlack(t *testing.T) {
	t.Run("plain_message", func(t *testing.T) {
		c, server := newCaptureServer(t)
		hook := notify.NewWebhook(server.URL + "/hooks.slack.com/services/T")
		require.Equal(t, notify.KindSlack, hook.Kind())

		err := hook.Send(context.Background(), notify.Payload{
			Message: "hello",
		})
		require.NoError(t, err)

		body := c.last(t)
		assert.Equal(t, "hello", body["text"])
		assert.NotContains(t, body, "attachments")
	})

	t.Run("attachment", func(t *testing.T) {
		c, server := newCaptureServer(t)
		hook := notify.NewWebhook(server.URL + "/hooks.slack.com/services/T")

		err := hook.Send(context.Background(), notify.Payload{
			Message: "run finished",
			Title:   "Workflow Failed",
			Color:   "#e74c3c",
			Fields: []notify.Field{
				{Name: "Failed steps", Value: "deploy, verify"},
			},
		})
		require.NoError(t, err)

		body := c.last(t)
		attachments, ok := body["attachments"].([]any)
		require.True(t, ok)
		require.Len(t, attachments, 1)

		attachment, ok := attachments[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Workflow Failed", attachment["title"])
		assert.Equal(t, "run finished", attachment["text"])
		assert.Equal(t, "e74c3c", attachment["color"])

		fields, ok := attachment["fields"].([]any)
		require.True(t, ok)
		require.Len(t, fields, 1)
		field, ok := fields[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Failed steps", field["title"])
		assert.Equal(t, "deploy, verify", field["value"])
	})
}

func TestSendBadColorDropped(t *testing.T) {
	c, server := newCaptureServer(t)
	hook := notify.NewWebhook(server.URL + "/discord.com/api/webhooks/1")

	err := hook.Send(context.Background(), notify.Payload{
		Message: "run finished",
		Title:   "Workflow Succeeded",
		Color:   "chartreuse",
	})
	require.NoError(t, err)

	embeds := c.last(t)["embeds"].([]any)
	embed := embeds[0].(map[string]any)
	assert.NotContains(t, embed, "color")
}

func TestSendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
	))
	t.Cleanup(server.Close)

	err := notify.NewWebhook(server.URL).Send(
		context.Background(), notify.Payload{Message: "hello"},
	)
	assert.ErrorIs(t, err, notify.ErrStatus)
	assert.ErrorContains(t, err, "403")
}

func TestSendConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(
		func(http.ResponseWriter, *http.Request) {},
	))
	url := server.URL
	server.Close()

	err := notify.NewWebhook(url).Send(
		context.Background(), notify.Payload{Message: "hello"},
	)
	assert.ErrorIs(t, err, notify.ErrDeliver)
}
