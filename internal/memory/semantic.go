// Package memory maintains durable semantic memory: throttled
// summarization of recent conversation and lexical retrieval over the
// accumulated snapshots.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/withme/withme/internal/provider"
	"github.com/withme/withme/internal/store"
)

const summarizeSystemPrompt = "Summarize stable facts and preferences learned since the last update. Output 3-5 bullet points."

// Refresher appends semantic memory snapshots at a throttled interval.
type Refresher struct {
	store     *store.Store
	completer provider.Completer
	window    int
	now       func() time.Time
}

// NewRefresher creates a refresher summarizing the last window messages.
func NewRefresher(st *store.Store, completer provider.Completer, window int) *Refresher {
	if window <= 0 {
		window = 20
	}
	return &Refresher{store: st, completer: completer, window: window, now: time.Now}
}

// MaybeRefresh appends a new semantic memory row when the newest one is
// absent or older than minIntervalHours. Returns false without side
// effects when throttled, when there is no conversation to summarize,
// or when the completion provider is unavailable. Prior rows are never
// touched.
func (r *Refresher) MaybeRefresh(ctx context.Context, agent *store.Agent, minIntervalHours int) (bool, error) {
	latest, err := r.store.LatestSemanticMemory(agent.ID)
	if err != nil {
		return false, err
	}
	now := r.now().UTC()
	if latest != nil && now.Sub(latest.UpdatedAt) < time.Duration(minIntervalHours)*time.Hour {
		return false, nil
	}

	summary, err := r.summarizeRecent(ctx, agent)
	if err != nil {
		slog.Debug("Semantic refresh summarize unavailable", "agent_id", agent.ID, "error", err)
		return false, nil
	}
	if summary == "" {
		return false, nil
	}

	if _, err := r.store.AppendSemanticMemory(agent.ID, summary); err != nil {
		return false, fmt.Errorf("append semantic memory: %w", err)
	}
	slog.Info("Semantic memory refreshed", "agent_id", agent.ID)
	return true, nil
}

func (r *Refresher) summarizeRecent(ctx context.Context, agent *store.Agent) (string, error) {
	msgs, err := r.store.RecentMessages(agent.ID, r.window)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, m := range msgs {
		if m.Text != "" {
			lines = append(lines, m.Role+": "+m.Text)
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	out, err := r.completer.Complete(ctx, summarizeSystemPrompt, []provider.Message{
		{Role: "user", Content: strings.Join(lines, "\n")},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
