package life

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/withme/withme/internal/memory"
	"github.com/withme/withme/internal/provider"
	"github.com/withme/withme/internal/store"
)

type fakeCompleter struct {
	reply string
	calls int
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, messages []provider.Message) (string, error) {
	f.calls++
	return f.reply, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "life.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestSweeper(t *testing.T, st *store.Store, completer provider.Completer) *Sweeper {
	t.Helper()
	return NewSweeper(Options{
		Store:          st,
		Refresher:      memory.NewRefresher(st, completer, 20),
		Completer:      completer,
		DailyEventHour: 8,
		InitiationCap:  2,
	})
}

func TestDaySeedDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if daySeed("agent-1", day) != daySeed("agent-1", day.Add(3*time.Hour)) {
		t.Error("same agent and date must seed identically regardless of time of day")
	}
	if daySeed("agent-1", day) == daySeed("agent-1", day.AddDate(0, 0, 1)) {
		t.Error("different dates must seed differently")
	}
	if daySeed("agent-1", day) == daySeed("agent-2", day) {
		t.Error("different agents must seed differently")
	}
}

func TestRollDailyEventBeforeHour(t *testing.T) {
	st := newTestStore(t)
	sw := newTestSweeper(t, st, &fakeCompleter{reply: "hi"})
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}

	early := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)
	sw.rollDailyEvent(context.Background(), agent, early)

	last, err := st.LastEventOfType(agent.ID, store.EventDaily)
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Errorf("no event should roll before hour %d, got %+v", sw.dailyEventHour, last)
	}
}

func TestRollDailyEventOncePerDay(t *testing.T) {
	st := newTestStore(t)
	sw := newTestSweeper(t, st, &fakeCompleter{reply: "hi"})
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}
	agent.InitiationTendency = 0 // keep this test about the event itself

	noon := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sw.rollDailyEvent(context.Background(), agent, noon)

	first, err := st.LastEventOfType(agent.ID, store.EventDaily)
	if err != nil {
		t.Fatal(err)
	}
	if first == nil {
		t.Fatal("expected a daily event after the configured hour")
	}
	if first.Seed != daySeed(agent.ID, noon) {
		t.Errorf("Seed = %d, want %d", first.Seed, daySeed(agent.ID, noon))
	}
	if first.MoodDelta < -0.1 || first.MoodDelta > 0.1 {
		t.Errorf("MoodDelta = %v, want within [-0.1, 0.1]", first.MoodDelta)
	}

	got, err := st.GetAgent(agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mood == agent.Mood && first.MoodDelta != 0 {
		t.Error("mood delta was not applied to the agent")
	}

	// A second sweep the same local day is a no-op.
	sw.rollDailyEvent(context.Background(), agent, noon.Add(4*time.Hour))
	second, err := st.LastEventOfType(agent.ID, store.EventDaily)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Error("same-day re-run must not roll a second event")
	}

	// The next day rolls again.
	sw.rollDailyEvent(context.Background(), agent, noon.AddDate(0, 0, 1))
	third, err := st.LastEventOfType(agent.ID, store.EventDaily)
	if err != nil {
		t.Fatal(err)
	}
	if third.ID == first.ID {
		t.Error("next day must roll a fresh event")
	}
}

func TestInitiationWritesMessageAndEvent(t *testing.T) {
	st := newTestStore(t)
	completer := &fakeCompleter{reply: "Guess what happened today!"}
	sw := newTestSweeper(t, st, completer)
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sw.maybeInitiate(context.Background(), agent, "A pleasant walk", now)

	msgs, err := st.RecentMessages(agent.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Role != store.RoleAgent {
		t.Fatalf("messages = %+v, want one agent message", msgs)
	}
	if msgs[0].Text != "Guess what happened today!" {
		t.Errorf("Text = %q", msgs[0].Text)
	}

	ev, err := st.LastEventOfType(agent.ID, store.EventInitiation)
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil {
		t.Fatal("expected an initiation event alongside the message")
	}
}

func TestInitiationCapHonored(t *testing.T) {
	st := newTestStore(t)
	sw := newTestSweeper(t, st, &fakeCompleter{reply: "hey"})
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		sw.maybeInitiate(context.Background(), agent, "A pleasant walk", now)
	}

	count, err := st.CountInitiationsSince(agent.ID, now.UTC().Truncate(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != sw.initiationCap {
		t.Errorf("initiations today = %d, want cap %d", count, sw.initiationCap)
	}
}

func TestInitiationCapIgnoresChatReplies(t *testing.T) {
	st := newTestStore(t)
	sw := newTestSweeper(t, st, &fakeCompleter{reply: "hey"})
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}

	// Ordinary agent replies fill the message log without touching the
	// initiation budget.
	for i := 0; i < 5; i++ {
		if _, err := st.CreateMessage(&store.Message{
			UserID:  agent.UserID,
			AgentID: agent.ID,
			Role:    store.RoleAgent,
			Text:    "a reply",
		}); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sw.maybeInitiate(context.Background(), agent, "A pleasant walk", now)

	count, err := st.CountInitiationsSince(agent.ID, now.UTC().Truncate(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("initiations today = %d, want 1 despite prior replies", count)
	}
}

func TestInitiationFallbackTextWithoutProvider(t *testing.T) {
	st := newTestStore(t)
	sw := newTestSweeper(t, st, nil)
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sw.maybeInitiate(context.Background(), agent, "Great coffee with an old friend", now)

	msgs, err := st.RecentMessages(agent.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text == "" {
		t.Fatalf("messages = %+v, want one templated message", msgs)
	}
}

func TestDailyEventBadTimezoneFallsBackToUTC(t *testing.T) {
	st := newTestStore(t)
	sw := newTestSweeper(t, st, &fakeCompleter{reply: "hi"})
	agent, err := st.GetOrCreateAgent("u1")
	if err != nil {
		t.Fatal(err)
	}
	agent.Timezone = "Not/AZone"
	agent.InitiationTendency = 0

	noon := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sw.rollDailyEvent(context.Background(), agent, noon)

	ev, err := st.LastEventOfType(agent.ID, store.EventDaily)
	if err != nil {
		t.Fatal(err)
	}
	if ev == nil {
		t.Error("bad timezone must fall back to UTC, not skip the roll")
	}
}
