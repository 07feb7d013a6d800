package state

import (
	"strings"
	"time"

	"github.com/withme/withme/internal/store"
)

var positiveTokens = []string{"thanks", "glad", "love", "great", "awesome", "sweet", "nice", "happy"}
var negativeTokens = []string{"angry", "mad", "hate", "sad", "annoyed", "upset"}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func containsAny(text string, tokens []string) bool {
	lowered := strings.ToLower(text)
	for _, t := range tokens {
		if strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

// ApplyMoodMicrodelta nudges the agent's mood from the time of day and
// lexical cues in the user's message, then clamps to [-1,1]. The two
// contributions are the only sources, so a single call moves mood by at
// most 0.05 in magnitude. Mutates the agent in place; no I/O.
func ApplyMoodMicrodelta(agent *store.Agent, userText string, now time.Time) {
	delta := 0.0
	switch AvailabilityAt(now, agent.Timezone) {
	case Work:
		delta -= 0.02
	case Evening:
		delta += 0.02
	}
	if containsAny(userText, positiveTokens) {
		delta += 0.03
	}
	if containsAny(userText, negativeTokens) {
		delta -= 0.03
	}
	agent.Mood = clamp(agent.Mood+delta, -1.0, 1.0)
	t := now.UTC()
	agent.LastMoodUpdateAt = &t
}
