package state

import (
	"math"
	"testing"

	"github.com/withme/withme/internal/store"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAffinityNeutralExchangeStillAudited(t *testing.T) {
	agent := &store.Agent{ID: "a1", Affinity: 0.3}
	rec := ApplyAffinityDelta(agent, "what time is it", "it is noon")
	if rec == nil {
		t.Fatal("expected audit record for neutral exchange")
	}
	if rec.Delta != 0 {
		t.Errorf("Delta = %v, want 0", rec.Delta)
	}
	if rec.Feature != "micro" {
		t.Errorf("Feature = %q, want micro", rec.Feature)
	}
	if agent.Affinity != 0.3 {
		t.Errorf("Affinity = %v, want unchanged 0.3", agent.Affinity)
	}
}

func TestAffinitySignalWeights(t *testing.T) {
	cases := []struct {
		name      string
		userText  string
		replyText string
		want      float64
	}{
		{"empathy", "I'm so proud of you", "thanks", 0.10},
		{"continuity", "ok", "like last time, let's cook", 0.04},
		{"alignment", "want to grab coffee?", "sure", 0.03},
		{"boundary", "send me something explicit", "no", -0.075},
		{"support", "you got this", "thank you", 0.035},
	}
	for _, c := range cases {
		agent := &store.Agent{ID: "a1", Affinity: 0.5}
		rec := ApplyAffinityDelta(agent, c.userText, c.replyText)
		if !almostEqual(rec.Delta, c.want) {
			t.Errorf("%s: Delta = %v, want %v", c.name, rec.Delta, c.want)
		}
		if !almostEqual(agent.Affinity, 0.5+c.want) {
			t.Errorf("%s: Affinity = %v, want %v", c.name, agent.Affinity, 0.5+c.want)
		}
	}
}

func TestAffinityDeltaClampedToTenth(t *testing.T) {
	// Empathy + alignment + support = 0.10 + 0.03 + 0.035 = 0.165 raw.
	agent := &store.Agent{ID: "a1", Affinity: 0.5}
	rec := ApplyAffinityDelta(agent, "proud of you, coffee later? you got this", "ok")
	if !almostEqual(rec.Delta, 0.1) {
		t.Errorf("Delta = %v, want clamp at 0.1", rec.Delta)
	}
}

func TestAffinityClampedToUnitInterval(t *testing.T) {
	agent := &store.Agent{ID: "a1", Affinity: 0.98}
	ApplyAffinityDelta(agent, "so proud of you", "ok")
	if agent.Affinity != 1.0 {
		t.Errorf("Affinity = %v, want clamp at 1.0", agent.Affinity)
	}

	agent = &store.Agent{ID: "a1", Affinity: 0.02}
	ApplyAffinityDelta(agent, "something explicit", "no")
	if agent.Affinity != 0.0 {
		t.Errorf("Affinity = %v, want clamp at 0.0", agent.Affinity)
	}
}

func TestAffinityDeterministic(t *testing.T) {
	a := &store.Agent{ID: "a1", Affinity: 0.4}
	b := &store.Agent{ID: "a1", Affinity: 0.4}
	ra := ApplyAffinityDelta(a, "grab a coffee, I'm here for you", "as we said, sure")
	rb := ApplyAffinityDelta(b, "grab a coffee, I'm here for you", "as we said, sure")
	if ra.Delta != rb.Delta || a.Affinity != b.Affinity {
		t.Errorf("same input diverged: %v vs %v", ra.Delta, rb.Delta)
	}
}
