// Package bus provides the async message bus between the HTTP surface
// and the chat runtime.
package bus

import (
	"context"
	"sync"
	"time"
)

// InboundTurn is one user message headed for the chat service.
type InboundTurn struct {
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	TraceID   string    `json:"trace_id"`
	Text      string    `json:"text"`
	Timezone  string    `json:"timezone,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Reply receives the turn result when the caller is waiting
	// synchronously. Nil for fire-and-forget turns.
	Reply chan *OutboundReply `json:"-"`
}

// OutboundReply is the agent's side of a turn, fanned out to subscribers.
// MessageID identifies the user message that opened the turn; ReplyID
// identifies the agent message that answered it.
type OutboundReply struct {
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	TraceID   string `json:"trace_id"`
	MessageID string `json:"message_id"`
	ReplyID   string `json:"reply_id"`
	Text      string `json:"text"`
	ImageURL  string `json:"image_url,omitempty"`
	Err       error  `json:"-"`
}

// MessageBus decouples the HTTP handlers from the chat runtime.
type MessageBus struct {
	inbound  chan *InboundTurn
	outbound chan *OutboundReply
	subs     []func(*OutboundReply)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundTurn, 100),
		outbound: make(chan *OutboundReply, 100),
	}
}

// PublishInbound hands a turn to the runtime.
func (b *MessageBus) PublishInbound(turn *InboundTurn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	b.inbound <- turn
}

// ConsumeInbound blocks until a turn is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundTurn, error) {
	select {
	case turn := <-b.inbound:
		return turn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound fans a reply out to subscribers and, when the turn
// carried a reply channel, to the waiting caller.
func (b *MessageBus) PublishOutbound(reply *OutboundReply) {
	b.outbound <- reply
}

// Subscribe registers a callback for every outbound reply.
func (b *MessageBus) Subscribe(callback func(*OutboundReply)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, callback)
}

// DispatchOutbound runs the outbound dispatcher. Run as a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reply := <-b.outbound:
			b.mu.RLock()
			callbacks := append([]func(*OutboundReply){}, b.subs...)
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(reply)
			}
		}
	}
}
