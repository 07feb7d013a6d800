package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/withme/withme/internal/imaging"
	"github.com/withme/withme/internal/memory"
	"github.com/withme/withme/internal/provider"
	"github.com/withme/withme/internal/queue"
	"github.com/withme/withme/internal/state"
	"github.com/withme/withme/internal/store"
)

// Enqueuer hands background tasks to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *queue.Task) error
}

// Service runs one logical unit of work per inbound request.
type Service struct {
	store           *store.Store
	completer       provider.Completer
	enqueuer        Enqueuer
	index           *memory.RetrievalIndex
	globalThreshold float64
	window          int
	now             func() time.Time
}

// Options configures a chat Service.
type Options struct {
	Store           *store.Store
	Completer       provider.Completer
	Enqueuer        Enqueuer
	Index           *memory.RetrievalIndex
	GlobalThreshold float64
	MessageWindow   int
}

// NewService creates the chat service.
func NewService(opts Options) *Service {
	window := opts.MessageWindow
	if window <= 0 {
		window = 20
	}
	return &Service{
		store:           opts.Store,
		completer:       opts.Completer,
		enqueuer:        opts.Enqueuer,
		index:           opts.Index,
		globalThreshold: opts.GlobalThreshold,
		window:          window,
		now:             time.Now,
	}
}

// Reply is the agent's half of a chat exchange.
type Reply struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SendResult is returned to the chat-send caller.
type SendResult struct {
	MessageID string `json:"message_id"`
	Reply     Reply  `json:"reply"`
}

// Send processes one user message: availability and mood update, reply
// generation (with local fallback), affinity update with its audit row,
// and atomic persistence of the whole turn. The reply always has text.
func (s *Service) Send(ctx context.Context, userID, email, text string) (*SendResult, error) {
	user, err := s.store.GetOrCreateUser(userID, email)
	if err != nil {
		return nil, fmt.Errorf("chat send: %w", err)
	}
	agent, err := s.store.GetOrCreateAgent(user.ID)
	if err != nil {
		return nil, fmt.Errorf("chat send: %w", err)
	}

	now := s.now()
	state.ApplyMoodMicrodelta(agent, text, now)

	promptCtx, err := BuildContext(s.store, s.index, agent, s.window, now)
	if err != nil {
		return nil, err
	}

	replyText := s.completeReply(ctx, agent, promptCtx, text)
	delta := state.ApplyAffinityDelta(agent, text, replyText)

	turn := &store.Turn{
		Agent: agent,
		UserMessage: &store.Message{
			UserID:  user.ID,
			AgentID: agent.ID,
			Role:    store.RoleUser,
			Text:    text,
		},
		AgentMessage: &store.Message{
			UserID:  user.ID,
			AgentID: agent.ID,
			Role:    store.RoleAgent,
			Text:    replyText,
		},
		AffinityDelta: delta,
	}
	if err := s.store.SaveTurn(turn); err != nil {
		return nil, fmt.Errorf("chat send: %w", err)
	}

	return &SendResult{
		MessageID: turn.UserMessage.ID,
		Reply:     Reply{ID: turn.AgentMessage.ID, Text: replyText},
	}, nil
}

func (s *Service) completeReply(ctx context.Context, agent *store.Agent, promptCtx *Context, text string) string {
	var turns []provider.Message
	for _, m := range promptCtx.Messages {
		if m.Text == "" {
			continue
		}
		role := "user"
		if m.Role == store.RoleAgent {
			role = "assistant"
		}
		turns = append(turns, provider.Message{Role: role, Content: m.Text})
	}
	turns = append(turns, provider.Message{Role: "user", Content: text})

	reply, err := s.completer.Complete(ctx, SystemPrompt(agent, promptCtx), turns)
	if err != nil || reply == "" {
		slog.Debug("Completion unavailable, using fallback reply", "agent_id", agent.ID, "error", err)
		return provider.FallbackReply(promptCtx.Availability)
	}
	return reply
}

// ImageOutcome is returned to the image-request caller. A denial is a
// first-class outcome, not an error: Denied carries the reason payload.
type ImageOutcome struct {
	JobID  string                `json:"job_id,omitempty"`
	Status string                `json:"status,omitempty"`
	Denied *imaging.GateDecision `json:"denied,omitempty"`
}

// RequestImage gates, persists a durable queued job, and enqueues it to
// the worker topic. The caller receives the job id even if the enqueue
// fails; the job stays queued and a later delivery can pick it up.
func (s *Service) RequestImage(ctx context.Context, userID, prompt string) (*ImageOutcome, error) {
	agent, err := s.store.GetOrCreateAgent(userID)
	if err != nil {
		return nil, fmt.Errorf("request image: %w", err)
	}

	decision := imaging.CanSendImage(agent, s.globalThreshold)
	if !decision.Allowed {
		slog.Info("Image request denied", "agent_id", agent.ID,
			"reason", decision.Reason, "affinity", decision.Affinity, "threshold", decision.Threshold)
		return &ImageOutcome{Denied: &decision}, nil
	}

	kind := imaging.ChooseKind(agent)
	job, err := s.store.CreateImageJob(agent.ID, prompt, kind)
	if err != nil {
		return nil, fmt.Errorf("request image: %w", err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.Enqueue(ctx, queue.NewImageJobTask(job.ID)); err != nil {
			slog.Warn("Image job enqueue failed, job stays queued", "job_id", job.ID, "error", err)
		}
	}

	return &ImageOutcome{JobID: job.ID, Status: job.Status}, nil
}

// IngestProviderUpdate accepts a provider push callback and routes it
// through the durable queue so finalize runs under the same worker
// idempotency rules as polling.
func (s *Service) IngestProviderUpdate(ctx context.Context, jobID, status, url string) error {
	if s.enqueuer == nil {
		return fmt.Errorf("ingest update: no queue configured")
	}
	return s.enqueuer.Enqueue(ctx, queue.NewImageUpdateTask(jobID, status, url))
}

// RegisterDevice records a push target for the user.
func (s *Service) RegisterDevice(userID, platform, token string) error {
	_, err := s.store.UpsertDevice(userID, platform, token)
	return err
}
