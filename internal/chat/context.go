// Package chat implements the request-driven conversation pipeline:
// context building, the chat turn, and image request intake.
package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/withme/withme/internal/memory"
	"github.com/withme/withme/internal/state"
	"github.com/withme/withme/internal/store"
)

// Context is everything the completion prompt is built from.
type Context struct {
	Messages     []*store.Message
	Scenarios    []*store.Scenario
	Memory       *store.SemanticMemory
	Retrieved    []memory.Match
	Mood         float64
	Availability string
	Flags        map[string]any
}

// BuildContext assembles the prompt context for one turn: recent
// history, scenario tracks, the authoritative memory snapshot, and
// best-effort retrieval over older snapshots.
func BuildContext(st *store.Store, index *memory.RetrievalIndex, agent *store.Agent, lastN int, now time.Time) (*Context, error) {
	msgs, err := st.RecentMessages(agent.ID, lastN)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	scenarios, err := st.ScenariosForAgent(agent.ID)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	latest, err := st.LatestSemanticMemory(agent.ID)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	var retrieved []memory.Match
	if q := lastUserText(msgs); q != "" {
		retrieved = index.Query(agent.ID, q, 8)
	}

	return &Context{
		Messages:     msgs,
		Scenarios:    scenarios,
		Memory:       latest,
		Retrieved:    retrieved,
		Mood:         agent.Mood,
		Availability: state.AvailabilityAt(now, agent.Timezone),
		Flags: map[string]any{
			"romance_allowed": agent.RomanceAllowed,
			"timezone":        agent.Timezone,
		},
	}, nil
}

func lastUserText(msgs []*store.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == store.RoleUser && msgs[i].Text != "" {
			return msgs[i].Text
		}
	}
	return ""
}

// SystemPrompt renders the agent persona and context into the system
// prompt for the completion provider.
func SystemPrompt(agent *store.Agent, c *Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a companion with this persona: %s\n", agent.Name, agent.Persona)
	fmt.Fprintf(&b, "Current mood: %.2f (range -1 to 1). You are currently: %s.\n", c.Mood, c.Availability)
	if !agent.RomanceAllowed {
		b.WriteString("Keep the tone strictly platonic.\n")
	}
	if c.Memory != nil {
		b.WriteString("What you remember about this person:\n")
		b.WriteString(c.Memory.Content)
		b.WriteString("\n")
	}
	if len(c.Retrieved) > 0 {
		b.WriteString("Possibly relevant older memories:\n")
		for _, m := range c.Retrieved {
			b.WriteString("- " + m.Content + "\n")
		}
	}
	if len(c.Scenarios) > 0 {
		b.WriteString("Ongoing storylines:\n")
		for _, sc := range c.Scenarios {
			fmt.Fprintf(&b, "- [%s] %s (progress %.0f%%)\n", sc.Track, sc.Title, sc.Progress*100)
		}
	}
	b.WriteString("Reply in character, briefly and naturally.")
	return b.String()
}
