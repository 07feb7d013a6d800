package imaging

import (
	"fmt"

	"github.com/withme/withme/internal/state"
	"github.com/withme/withme/internal/store"
)

// safetyGuard is appended to every provider prompt, without exception.
const safetyGuard = "Tasteful, fully clothed, photorealistic portrait. No explicit or suggestive content. Consistent facial identity."

// expressionForMood maps the mood scalar to a facial expression cue.
func expressionForMood(mood float64) string {
	switch {
	case mood >= 0.3:
		return "warm, genuinely smiling"
	case mood <= -0.3:
		return "tired, slightly annoyed"
	default:
		return "neutral, relaxed"
	}
}

// sceneForAvailability maps the availability window to a scene location.
func sceneForAvailability(availability string) string {
	switch availability {
	case state.Commute:
		return "on a morning commute, city street background"
	case state.Work:
		return "at a desk in a modern office"
	case state.Evening:
		return "relaxing at home in soft evening light"
	default:
		return "in a dim, quiet bedroom late at night"
	}
}

// BuildPrompt composes the full provider prompt for a job. Edit jobs get
// an injected scene and expression derived from the agent's current
// state; every prompt ends with the safety guard.
func BuildPrompt(job *store.ImageJob, agent *store.Agent, availability string) string {
	if job.Kind == store.KindEdit {
		return fmt.Sprintf("%s. Expression: %s. Scene: %s. %s",
			job.Prompt, expressionForMood(agent.Mood), sceneForAvailability(availability), safetyGuard)
	}
	return fmt.Sprintf("%s. %s", job.Prompt, safetyGuard)
}
