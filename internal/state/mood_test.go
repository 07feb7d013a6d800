package state

import (
	"testing"
	"time"

	"github.com/withme/withme/internal/store"
)

func agentWithMood(mood float64) *store.Agent {
	return &store.Agent{ID: "a1", Mood: mood, Timezone: "UTC"}
}

func TestMoodWorkWindowDecrement(t *testing.T) {
	agent := agentWithMood(0)
	at := time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC)
	ApplyMoodMicrodelta(agent, "hello", at)
	if agent.Mood != -0.02 {
		t.Errorf("Mood = %v, want -0.02", agent.Mood)
	}
	if agent.LastMoodUpdateAt == nil {
		t.Error("LastMoodUpdateAt not set")
	}
}

func TestMoodEveningIncrement(t *testing.T) {
	agent := agentWithMood(0)
	at := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	ApplyMoodMicrodelta(agent, "hello", at)
	if agent.Mood != 0.02 {
		t.Errorf("Mood = %v, want 0.02", agent.Mood)
	}
}

func TestMoodLexicalCues(t *testing.T) {
	// 03:00 is sleep, so the time contribution is zero.
	at := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

	agent := agentWithMood(0)
	ApplyMoodMicrodelta(agent, "thanks, that was great", at)
	if agent.Mood != 0.03 {
		t.Errorf("positive cue Mood = %v, want 0.03", agent.Mood)
	}

	agent = agentWithMood(0)
	ApplyMoodMicrodelta(agent, "I'm so annoyed today", at)
	if agent.Mood != -0.03 {
		t.Errorf("negative cue Mood = %v, want -0.03", agent.Mood)
	}

	// Both cue sets present cancel out.
	agent = agentWithMood(0)
	ApplyMoodMicrodelta(agent, "happy but also sad", at)
	if agent.Mood != 0 {
		t.Errorf("mixed cues Mood = %v, want 0", agent.Mood)
	}
}

func TestMoodClamped(t *testing.T) {
	at := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)

	agent := agentWithMood(0.99)
	ApplyMoodMicrodelta(agent, "love it", at)
	if agent.Mood != 1.0 {
		t.Errorf("Mood = %v, want clamp at 1.0", agent.Mood)
	}

	agent = agentWithMood(-0.99)
	ApplyMoodMicrodelta(agent, "I hate this", at)
	at = time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC)
	ApplyMoodMicrodelta(agent, "still mad", at)
	if agent.Mood != -1.0 {
		t.Errorf("Mood = %v, want clamp at -1.0", agent.Mood)
	}
}

func TestMoodDeterministic(t *testing.T) {
	at := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	a := agentWithMood(0.1)
	b := agentWithMood(0.1)
	ApplyMoodMicrodelta(a, "great evening", at)
	ApplyMoodMicrodelta(b, "great evening", at)
	if a.Mood != b.Mood {
		t.Errorf("same input diverged: %v vs %v", a.Mood, b.Mood)
	}
}
