package state

import (
	"github.com/withme/withme/internal/store"
)

var (
	empathyCues    = []string{"sorry", "you okay", "are you ok", "proud"}
	continuityCues = []string{"as we said", "like last time", "earlier"}
	alignmentCues  = []string{"coffee", "walk", "music", "movie"}
	boundaryCues   = []string{"explicit", "nsfw", "dirty"}
	supportCues    = []string{"i'm here", "here for you", "you got this"}
)

// Signal weights for the affinity model.
const (
	weightEmpathy    = 0.10
	weightContinuity = 0.08
	weightAlignment  = 0.06
	weightBoundary   = 0.15
	weightSupport    = 0.07
)

// ApplyAffinityDelta scores one exchange against the fixed lexical
// signal sets, clamps the raw delta to [-0.1, 0.1], applies it to the
// agent's affinity (clamped to [0,1]), and returns the audit record.
// Deterministic for given texts. The audit row is produced even when
// the delta is zero so the provenance trail stays complete.
func ApplyAffinityDelta(agent *store.Agent, userText, replyText string) *store.AffinityDelta {
	empathy := 0.0
	if containsAny(userText, empathyCues) {
		empathy = 1.0
	}
	continuity := 0.0
	if containsAny(replyText, continuityCues) {
		continuity = 0.5
	}
	alignment := 0.0
	if containsAny(userText, alignmentCues) {
		alignment = 0.5
	}
	boundary := 0.0
	if containsAny(userText, boundaryCues) {
		boundary = 0.5
	}
	support := 0.0
	if containsAny(userText, supportCues) {
		support = 0.5
	}

	raw := weightEmpathy*empathy + weightContinuity*continuity +
		weightAlignment*alignment - weightBoundary*boundary + weightSupport*support
	delta := clamp(raw, -0.1, 0.1)

	agent.Affinity = clamp(agent.Affinity+delta, 0.0, 1.0)

	return &store.AffinityDelta{
		AgentID: agent.ID,
		Feature: "micro",
		Delta:   delta,
	}
}
