package events

import (
	"sync"

	"gotsol/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload extracts the wire representation of an event. Events that do not
// carry one are converted into an attribute-less payload of their type.
func Payload(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := provider.Event(); payload != nil {
			return payload.Clone()
		}
		return nil
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}

// Buffer collects events until the surrounding state transition either
// commits (Drain) or aborts (Reset). Nothing is delivered on failure.
type Buffer struct {
	mu     sync.Mutex
	events []types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	payload := Payload(evt)
	if b == nil || payload == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, *payload)
	b.mu.Unlock()
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []types.Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Reset discards buffered events.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
