package provider

// FallbackReply returns a canned reply keyed by the agent's current
// availability window. Chat responses must always carry text, even when
// the completion provider is down.
func FallbackReply(availability string) string {
	switch availability {
	case "commute":
		return "On my way in, it's a bit hectic. Tell me more in a second?"
	case "work":
		return "Stuck in back-to-back meetings, but I saw your message. Thinking of you."
	case "evening":
		return "Just settled in for the evening. I'm all yours, what's up?"
	default:
		return "Half asleep over here, but I'm glad you wrote. I'll reply properly soon."
	}
}
