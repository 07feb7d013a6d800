// Package notify delivers best-effort outbound signals: push
// notifications to user devices and operational alerts to Slack.
// Nothing in this package ever blocks or fails a job lifecycle.
package notify

import (
	"context"
	"log/slog"

	"github.com/withme/withme/internal/store"
)

// Service fans out notifications. Either sink may be nil.
type Service struct {
	push  *FCMPusher
	slack *SlackAlerter
	store *store.Store
}

// NewService wires the configured sinks.
func NewService(st *store.Store, push *FCMPusher, slack *SlackAlerter) *Service {
	return &Service{push: push, slack: slack, store: st}
}

// ImageDelivered pushes "new image" to the owning user's devices.
func (s *Service) ImageDelivered(ctx context.Context, agent *store.Agent, message *store.Message) {
	if s == nil || s.push == nil {
		return
	}
	devices, err := s.store.DevicesForUser(agent.UserID)
	if err != nil {
		slog.Warn("Notify device lookup failed", "user_id", agent.UserID, "error", err)
		return
	}
	for _, d := range devices {
		s.push.Send(ctx, d.PushToken, agent.Name+" sent you a photo", message.ImageURL)
	}
}

// MessageInitiated pushes an agent-initiated message to the user.
func (s *Service) MessageInitiated(ctx context.Context, agent *store.Agent, message *store.Message) {
	if s == nil || s.push == nil {
		return
	}
	devices, err := s.store.DevicesForUser(agent.UserID)
	if err != nil {
		slog.Warn("Notify device lookup failed", "user_id", agent.UserID, "error", err)
		return
	}
	for _, d := range devices {
		s.push.Send(ctx, d.PushToken, agent.Name, message.Text)
	}
}

// JobFailed raises an ops alert for a terminally failed image job.
func (s *Service) JobFailed(ctx context.Context, job *store.ImageJob, reason string) {
	if s == nil || s.slack == nil {
		return
	}
	s.slack.Alert(ctx, "image job failed", "job="+job.ID+" kind="+job.Kind+" reason="+reason)
}
