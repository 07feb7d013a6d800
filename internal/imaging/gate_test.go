package imaging

import (
	"testing"

	"github.com/withme/withme/internal/store"
)

func TestGateRomanceDisabled(t *testing.T) {
	agent := &store.Agent{ID: "a1", RomanceAllowed: false, Affinity: 0.9, ImageThreshold: 0.6}
	d := CanSendImage(agent, 0.6)
	if d.Allowed {
		t.Fatal("expected denial when romance is disabled")
	}
	if d.Reason != ReasonRomanceDisabled {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonRomanceDisabled)
	}
}

func TestGateStricterThresholdWins(t *testing.T) {
	// Agent threshold 0.5, global 0.6: affinity 0.55 clears the agent's
	// own bar but not the global one.
	agent := &store.Agent{ID: "a1", RomanceAllowed: true, Affinity: 0.55, ImageThreshold: 0.5}
	d := CanSendImage(agent, 0.6)
	if d.Allowed {
		t.Fatal("expected denial below the global threshold")
	}
	if d.Reason != ReasonAffinityTooLow {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonAffinityTooLow)
	}
	if d.Threshold != 0.6 {
		t.Errorf("Threshold = %v, want 0.6", d.Threshold)
	}
	if d.Affinity != 0.55 {
		t.Errorf("Affinity = %v, want 0.55", d.Affinity)
	}

	// The stricter per-agent threshold also wins over a lax global.
	agent = &store.Agent{ID: "a1", RomanceAllowed: true, Affinity: 0.65, ImageThreshold: 0.7}
	if d := CanSendImage(agent, 0.6); d.Allowed {
		t.Error("expected denial below the per-agent threshold")
	}
}

func TestGateAllowedAtThreshold(t *testing.T) {
	agent := &store.Agent{ID: "a1", RomanceAllowed: true, Affinity: 0.6, ImageThreshold: 0.6}
	d := CanSendImage(agent, 0.6)
	if !d.Allowed {
		t.Fatalf("expected allow at exact threshold, got reason %q", d.Reason)
	}
	if d.Reason != "" {
		t.Errorf("Reason = %q, want empty on allow", d.Reason)
	}
}

func TestChooseKind(t *testing.T) {
	agent := &store.Agent{ID: "a1"}
	if got := ChooseKind(agent); got != store.KindBase {
		t.Errorf("ChooseKind without base = %q, want %q", got, store.KindBase)
	}
	agent.BaseImageURL = "https://cdn.example.com/base.jpg"
	if got := ChooseKind(agent); got != store.KindEdit {
		t.Errorf("ChooseKind with base = %q, want %q", got, store.KindEdit)
	}
}
