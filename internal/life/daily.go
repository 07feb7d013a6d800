// Package life runs the agent's simulated life: seeded daily events,
// capped agent-initiated messages, and the semantic refresh sweep.
package life

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/withme/withme/internal/memory"
	"github.com/withme/withme/internal/notify"
	"github.com/withme/withme/internal/provider"
	"github.com/withme/withme/internal/store"
)

var dailyEventTitles = []string{
	"A pleasant walk",
	"A tough meeting that ran long",
	"Great coffee with an old friend",
	"Stuck in traffic forever",
	"Found a song on repeat all day",
	"A quiet, productive morning",
}

// Sweeper drives the per-agent background work.
type Sweeper struct {
	store          *store.Store
	refresher      *memory.Refresher
	notifier       *notify.Service
	completer      provider.Completer
	refreshHours   int
	dailyEventHour int
	initiationCap  int
	now            func() time.Time
}

// Options configures a Sweeper.
type Options struct {
	Store          *store.Store
	Refresher      *memory.Refresher
	Notifier       *notify.Service
	Completer      provider.Completer
	RefreshHours   int
	DailyEventHour int
	InitiationCap  int
}

// NewSweeper creates a sweeper with the configured throttles.
func NewSweeper(opts Options) *Sweeper {
	hours := opts.RefreshHours
	if hours <= 0 {
		hours = 6
	}
	cap := opts.InitiationCap
	if cap <= 0 {
		cap = 2
	}
	return &Sweeper{
		store:          opts.Store,
		refresher:      opts.Refresher,
		notifier:       opts.Notifier,
		completer:      opts.Completer,
		refreshHours:   hours,
		dailyEventHour: opts.DailyEventHour,
		initiationCap:  cap,
		now:            time.Now,
	}
}

// SemanticRefreshSweep runs MaybeRefresh over every agent. Each agent's
// own interval gate keeps this cheap to call often.
func (s *Sweeper) SemanticRefreshSweep(ctx context.Context, now time.Time) {
	agents, err := s.store.ListAgents()
	if err != nil {
		slog.Error("Semantic sweep agent list failed", "error", err)
		return
	}
	for _, agent := range agents {
		if _, err := s.refresher.MaybeRefresh(ctx, agent, s.refreshHours); err != nil {
			slog.Warn("Semantic refresh failed", "agent_id", agent.ID, "error", err)
		}
	}
}

// DailyEventSweep rolls at most one seeded life event per agent per
// local day, once the agent's local clock passes the configured hour.
func (s *Sweeper) DailyEventSweep(ctx context.Context, now time.Time) {
	agents, err := s.store.ListAgents()
	if err != nil {
		slog.Error("Daily event sweep agent list failed", "error", err)
		return
	}
	for _, agent := range agents {
		s.rollDailyEvent(ctx, agent, now)
	}
}

func (s *Sweeper) rollDailyEvent(ctx context.Context, agent *store.Agent, now time.Time) {
	loc, err := time.LoadLocation(agent.Timezone)
	if err != nil || agent.Timezone == "" {
		loc = time.UTC
	}
	local := now.In(loc)
	if local.Hour() < s.dailyEventHour {
		return
	}

	last, err := s.store.LastEventOfType(agent.ID, store.EventDaily)
	if err != nil {
		slog.Warn("Daily event lookup failed", "agent_id", agent.ID, "error", err)
		return
	}
	if last != nil && sameLocalDay(last.OccurredAt, now, loc) {
		return
	}

	// Seeded by agent and local date so a re-run of the same sweep day
	// rolls the same event.
	seed := daySeed(agent.ID, local)
	rng := rand.New(rand.NewSource(seed))
	moodDelta := (rng.Float64() - 0.5) * 0.2
	title := dailyEventTitles[rng.Intn(len(dailyEventTitles))]

	payload, _ := json.Marshal(map[string]any{"title": title})
	if _, err := s.store.AppendEvent(&store.Event{
		AgentID:    agent.ID,
		Type:       store.EventDaily,
		Payload:    string(payload),
		MoodDelta:  moodDelta,
		Seed:       seed,
		OccurredAt: now.UTC(),
	}); err != nil {
		slog.Warn("Daily event append failed", "agent_id", agent.ID, "error", err)
		return
	}
	if err := s.store.ApplyMoodDelta(agent.ID, moodDelta, now); err != nil {
		slog.Warn("Daily event mood apply failed", "agent_id", agent.ID, "error", err)
	}
	slog.Info("Daily event rolled", "agent_id", agent.ID, "title", title, "mood_delta", moodDelta)

	if rng.Float64() < agent.InitiationTendency {
		s.maybeInitiate(ctx, agent, title, now)
	}
}

// maybeInitiate sends an agent-initiated message about the day's event,
// capped per day.
func (s *Sweeper) maybeInitiate(ctx context.Context, agent *store.Agent, eventTitle string, now time.Time) {
	cutoff := now.UTC().Truncate(24 * time.Hour)
	count, err := s.store.CountInitiationsSince(agent.ID, cutoff)
	if err != nil {
		slog.Warn("Initiation count failed", "agent_id", agent.ID, "error", err)
		return
	}
	if count >= s.initiationCap {
		slog.Debug("Initiation cap reached", "agent_id", agent.ID, "count", count)
		return
	}

	text := s.initiationText(ctx, agent, eventTitle)
	msg, err := s.store.CreateMessage(&store.Message{
		UserID:  agent.UserID,
		AgentID: agent.ID,
		Role:    store.RoleAgent,
		Text:    text,
	})
	if err != nil {
		slog.Warn("Initiation message failed", "agent_id", agent.ID, "error", err)
		return
	}
	if _, err := s.store.AppendEvent(&store.Event{
		AgentID:    agent.ID,
		Type:       store.EventInitiation,
		Payload:    fmt.Sprintf(`{"message_id":%q}`, msg.ID),
		OccurredAt: now.UTC(),
	}); err != nil {
		slog.Warn("Initiation event append failed", "agent_id", agent.ID, "error", err)
	}
	if s.notifier != nil {
		s.notifier.MessageInitiated(ctx, agent, msg)
	}
	slog.Info("Agent initiated message", "agent_id", agent.ID)
}

func (s *Sweeper) initiationText(ctx context.Context, agent *store.Agent, eventTitle string) string {
	if s.completer != nil {
		prompt := fmt.Sprintf("You are %s. Something happened in your day: %q. Send your companion a short, warm opening message about it.", agent.Name, eventTitle)
		if out, err := s.completer.Complete(ctx, prompt, []provider.Message{{Role: "user", Content: "Write the message."}}); err == nil && out != "" {
			return out
		}
	}
	return fmt.Sprintf("Today: %s. Wish you'd been there. How's your day going?", eventTitle)
}

func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	al, bl := a.In(loc), b.In(loc)
	return al.Year() == bl.Year() && al.YearDay() == bl.YearDay()
}

func daySeed(agentID string, local time.Time) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s", agentID, local.Format("2006-01-02"))
	return int64(h.Sum64())
}
