package imaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/withme/withme/internal/state"
	"github.com/withme/withme/internal/store"
)

// Publisher copies a provider asset into durable object storage and
// returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, sourceURL string) (string, error)
}

// Notifier receives best-effort signals about job outcomes. Any method
// may be a no-op; failures never propagate into the job lifecycle.
type Notifier interface {
	ImageDelivered(ctx context.Context, agent *store.Agent, message *store.Message)
	JobFailed(ctx context.Context, job *store.ImageJob, reason string)
}

// Orchestrator owns the image job lifecycle: claim, submit, poll,
// extract, finalize, side effects. It never panics or returns an error
// to its caller; every run leaves the job in a terminal state.
type Orchestrator struct {
	store     *store.Store
	client    Client
	publisher Publisher
	notifier  Notifier

	pollInterval time.Duration
	maxPolls     int
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// Options configures an Orchestrator.
type Options struct {
	Store        *store.Store
	Client       Client
	Publisher    Publisher
	Notifier     Notifier
	PollInterval time.Duration
	MaxPolls     int
}

// NewOrchestrator creates an orchestrator with the 2s x 30 poll budget
// unless overridden.
func NewOrchestrator(opts Options) *Orchestrator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 30
	}
	return &Orchestrator{
		store:        opts.Store,
		client:       opts.Client,
		publisher:    opts.Publisher,
		notifier:     opts.Notifier,
		pollInterval: interval,
		maxPolls:     maxPolls,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Process drives one job to a terminal state. Duplicate deliveries of
// the same job id are safe: a job that is already claimed or terminal is
// left untouched.
func (o *Orchestrator) Process(ctx context.Context, jobID string) {
	job, err := o.store.GetImageJob(jobID)
	if err != nil {
		slog.Error("Image job lookup failed", "job_id", jobID, "error", err)
		return
	}
	if job == nil {
		slog.Warn("Image job unknown, ignoring", "job_id", jobID)
		return
	}
	if job.Terminal() {
		slog.Debug("Image job already terminal", "job_id", jobID, "status", job.Status)
		return
	}

	claimed, err := o.store.MarkJobRunning(job.ID)
	if err != nil {
		slog.Error("Image job claim failed", "job_id", jobID, "error", err)
		return
	}
	if !claimed {
		// Another orchestration attempt owns this job.
		slog.Debug("Image job already claimed", "job_id", jobID)
		return
	}
	job.Status = store.JobRunning

	agent, err := o.store.GetAgent(job.AgentID)
	if err != nil || agent == nil {
		o.finalize(ctx, job, agent, store.JobFailed, "", "agent missing")
		return
	}

	if !o.client.Configured() {
		// No credentials: deterministic fallback asset, job still
		// reaches succeeded so the client is never left hanging.
		url := fallbackAssetURL(job)
		slog.Info("Image provider unconfigured, using fallback asset", "job_id", job.ID)
		o.finalize(ctx, job, agent, store.JobSucceeded, url, "")
		return
	}

	availability := state.AvailabilityAt(o.now(), agent.Timezone)
	body := map[string]any{
		"prompt": BuildPrompt(job, agent, availability),
	}
	if job.Kind == store.KindEdit {
		body["image_url"] = agent.BaseImageURL
	}

	sub, err := o.client.Submit(ctx, job.Kind, body)
	if err != nil {
		slog.Warn("Image submit failed", "job_id", job.ID, "error", err)
		o.finalize(ctx, job, agent, store.JobFailed, "", fmt.Sprintf("submit: %v", err))
		return
	}

	url, reason := o.pollForResult(ctx, job, sub)
	if url == "" {
		o.finalize(ctx, job, agent, store.JobFailed, "", reason)
		return
	}
	o.finalize(ctx, job, agent, store.JobSucceeded, url, "")
}

// pollForResult polls within the fixed budget and returns the asset URL
// on success, or ("", reason) when the job must fail.
func (o *Orchestrator) pollForResult(ctx context.Context, job *store.ImageJob, sub *Submission) (string, string) {
	malformed := 0
	for attempt := 0; attempt < o.maxPolls; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.pollInterval); err != nil {
				return "", "cancelled while polling"
			}
		}

		res, err := o.client.Poll(ctx, sub.StatusURL)
		if err != nil {
			slog.Debug("Image poll transport error", "job_id", job.ID, "attempt", attempt, "error", err)
			continue
		}
		if res.StatusCode >= 500 {
			slog.Debug("Image poll transient 5xx", "job_id", job.ID, "attempt", attempt, "status_code", res.StatusCode)
			continue
		}

		switch normalizeStatus(res.Status) {
		case store.JobSucceeded:
			return o.extractResult(ctx, job, sub, res), "result payload carried no asset url"
		case store.JobFailed:
			return "", "provider reported failure"
		}

		// Still running. An empty status word means the payload did not
		// match the contract; counted and logged, but within the budget
		// it is treated the same as "still running".
		if res.Status == "" {
			malformed++
			if malformed > 1 {
				slog.Warn("Image poll payload repeatedly malformed", "job_id", job.ID, "count", malformed)
			}
		}
	}
	return "", "poll budget exhausted"
}

// extractResult pulls the asset URL out of the completion observation,
// preferring the dedicated result endpoint when one was advertised.
func (o *Orchestrator) extractResult(ctx context.Context, job *store.ImageJob, sub *Submission, res *PollResult) string {
	payload := res.Payload
	if sub.ResponseURL != "" {
		if fetched, err := o.client.Fetch(ctx, sub.ResponseURL); err == nil {
			payload = fetched
		} else {
			slog.Debug("Image result fetch failed, using status payload", "job_id", job.ID, "error", err)
		}
	}
	return FirstAssetURL(payload)
}

// HandleUpdate applies a provider push update ({jobID, status, url}) via
// the same finalize path as polling. Non-terminal statuses are ignored;
// duplicate terminal deliveries are idempotent.
func (o *Orchestrator) HandleUpdate(ctx context.Context, jobID, status, url string) {
	job, err := o.store.GetImageJob(jobID)
	if err != nil {
		slog.Error("Image update lookup failed", "job_id", jobID, "error", err)
		return
	}
	if job == nil {
		slog.Warn("Image update for unknown job, ignoring", "job_id", jobID)
		return
	}
	switch normalizeStatus(status) {
	case store.JobSucceeded:
		agent, err := o.store.GetAgent(job.AgentID)
		if err != nil || agent == nil {
			o.finalize(ctx, job, nil, store.JobFailed, "", "agent missing")
			return
		}
		if url == "" {
			o.finalize(ctx, job, agent, store.JobFailed, "", "success update carried no url")
			return
		}
		o.finalize(ctx, job, agent, store.JobSucceeded, url, "")
	case store.JobFailed:
		o.finalize(ctx, job, nil, store.JobFailed, "", "provider push reported failure")
	default:
		slog.Debug("Image update non-terminal, ignoring", "job_id", jobID, "status", status)
	}
}

// finalize writes the terminal status and runs side effects exactly once.
// The store guard makes the terminal write idempotent: when another
// delivery already finalized the job, side effects are skipped.
func (o *Orchestrator) finalize(ctx context.Context, job *store.ImageJob, agent *store.Agent, status, resultURL, reason string) {
	applied, err := o.store.FinalizeImageJob(job.ID, status, resultURL)
	if err != nil {
		slog.Error("Image job finalize failed", "job_id", job.ID, "status", status, "error", err)
		return
	}
	if !applied {
		slog.Debug("Image job finalize skipped, already terminal", "job_id", job.ID)
		return
	}
	job.Status = status
	job.ResultURL = resultURL

	if status == store.JobFailed {
		slog.Warn("Image job failed", "job_id", job.ID, "kind", job.Kind, "reason", reason)
		if o.notifier != nil {
			o.notifier.JobFailed(ctx, job, reason)
		}
		return
	}

	slog.Info("Image job succeeded", "job_id", job.ID, "kind", job.Kind)
	if agent == nil {
		return
	}
	if job.Kind == store.KindBase {
		o.publishBase(ctx, job, agent, resultURL)
		return
	}
	o.deliverImage(ctx, job, agent, resultURL)
}

// publishBase copies the asset into durable storage and records it as the
// agent's base identity, falling back to the raw provider URL when the
// publish fails.
func (o *Orchestrator) publishBase(ctx context.Context, job *store.ImageJob, agent *store.Agent, resultURL string) {
	finalURL := resultURL
	if o.publisher != nil {
		if publicURL, err := o.publisher.Publish(ctx, resultURL); err == nil && publicURL != "" {
			finalURL = publicURL
		} else if err != nil {
			slog.Warn("Base image publish failed, keeping provider url", "job_id", job.ID, "error", err)
		}
	}
	if err := o.store.SetBaseImageURL(agent.ID, finalURL); err != nil {
		slog.Error("Base image persist failed", "job_id", job.ID, "error", err)
	}
}

// deliverImage appends the agent-authored image message for non-base
// jobs and notifies the user's devices.
func (o *Orchestrator) deliverImage(ctx context.Context, job *store.ImageJob, agent *store.Agent, resultURL string) {
	msg, err := o.store.CreateMessage(&store.Message{
		UserID:   agent.UserID,
		AgentID:  agent.ID,
		Role:     store.RoleAgent,
		ImageURL: resultURL,
	})
	if err != nil {
		slog.Error("Image message append failed", "job_id", job.ID, "error", err)
		return
	}
	if o.notifier != nil {
		o.notifier.ImageDelivered(ctx, agent, msg)
	}
}

func fallbackAssetURL(job *store.ImageJob) string {
	return fmt.Sprintf("https://static.withme.app/fallback/%s/%s.jpg", job.AgentID, job.ID)
}

// normalizeStatus maps the provider status vocabulary onto the job
// state machine. Anything unrecognized means "still running".
func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "completed", "success":
		return store.JobSucceeded
	case "failed", "error":
		return store.JobFailed
	default:
		return store.JobRunning
	}
}
