package notify

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
)

// SlackAlerter posts operational alerts to a Slack channel.
type SlackAlerter struct {
	client  *slack.Client
	channel string
}

// NewSlackAlerter returns nil when Slack is not configured.
func NewSlackAlerter(token, channel string) *SlackAlerter {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackAlerter{
		client:  slack.New(token),
		channel: channel,
	}
}

// Alert posts one message. Best effort: failures are logged and
// swallowed.
func (a *SlackAlerter) Alert(ctx context.Context, title, detail string) {
	_, _, err := a.client.PostMessageContext(ctx, a.channel,
		slack.MsgOptionText(":warning: "+title+": "+detail, false))
	if err != nil {
		slog.Debug("Slack alert failed", "error", err)
	}
}
