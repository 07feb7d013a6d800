// Package imaging implements the visual-identity pipeline: the request
// gate, prompt construction, the provider client, and the job
// orchestrator.
package imaging

import (
	"github.com/withme/withme/internal/store"
)

// Stable machine-readable denial reasons.
const (
	ReasonRomanceDisabled = "romance_disabled"
	ReasonAffinityTooLow  = "affinity_below_threshold"
)

// GateDecision is the outcome of an image-request gate check. Denials
// always carry the effective threshold and current affinity so callers
// can explain them.
type GateDecision struct {
	Allowed   bool    `json:"allowed"`
	Reason    string  `json:"reason,omitempty"`
	Threshold float64 `json:"threshold"`
	Affinity  float64 `json:"affinity"`
}

// CanSendImage permits an image request iff romance is allowed and
// affinity meets the stricter of the per-agent and global thresholds.
func CanSendImage(agent *store.Agent, globalThreshold float64) GateDecision {
	threshold := agent.ImageThreshold
	if globalThreshold > threshold {
		threshold = globalThreshold
	}
	d := GateDecision{Threshold: threshold, Affinity: agent.Affinity}
	if !agent.RomanceAllowed {
		d.Reason = ReasonRomanceDisabled
		return d
	}
	if agent.Affinity < threshold {
		d.Reason = ReasonAffinityTooLow
		return d
	}
	d.Allowed = true
	return d
}

// ChooseKind selects the job kind for an agent's next image. The base
// identity must exist before anything else; once it does, every
// subsequent request is an edit of it so the visual identity stays
// consistent. The gen kind is reserved for historical payloads and is
// never chosen here.
func ChooseKind(agent *store.Agent) string {
	if agent.BaseImageURL == "" {
		return store.KindBase
	}
	return store.KindEdit
}
