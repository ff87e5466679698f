package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/slack-go/slack"
)

const defaultIconEmoji = ":robot_face:"

// SlackSink posts to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
	iconEmoji  string
	tmpl       Template
	http       *http.Client
}

// NewSlackSink creates a webhook sink. client may be nil; timeouts come from
// the context passed to Send.
func NewSlackSink(webhookURL, iconEmoji string, tmpl Template, client *http.Client) *SlackSink {
	if strings.TrimSpace(iconEmoji) == "" {
		iconEmoji = defaultIconEmoji
	}
	if client == nil {
		client = &http.Client{}
	}
	return &SlackSink{webhookURL: webhookURL, iconEmoji: iconEmoji, tmpl: tmpl, http: client}
}

func (s *SlackSink) Name() string { return "slack" }

// Send posts {"text", "icon_emoji"}. Any status other than 200 is an error
// (slack.StatusCodeError, or *slack.RateLimitedError for 429). Returned
// errors never contain the webhook path.
func (s *SlackSink) Send(ctx context.Context, n Notification) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.http, &slack.WebhookMessage{
		Text:      s.tmpl.Format(n),
		IconEmoji: s.iconEmoji,
	})
	if err == nil {
		return nil
	}
	return redactWebhook(err, s.webhookURL)
}

// webhookError hides the hook URL in the message and keeps the chain for
// errors.Is/As.
type webhookError struct {
	msg string
	err error
}

func (e *webhookError) Error() string { return e.msg }
func (e *webhookError) Unwrap() error { return e.err }

// The webhook path is the credential.
func redactWebhook(err error, hook string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	msg := err.Error()
	if hook == "" || !strings.Contains(msg, hook) {
		return err
	}
	return &webhookError{msg: strings.ReplaceAll(msg, hook, redactURL(hook)), err: err}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<redacted>"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
