// Package progress carries advisory, fire-and-forget pipeline events to a
// subscriber. Delivery is best effort; the pipeline never waits on a sink.
package progress

import (
	"context"
	"time"
)

// Event types emitted by the pipeline.
const (
	TypePathSelected = "extraction.path"
	TypeExtraction   = "extraction.progress"
	TypeInference    = "inference.progress"
	TypePricing      = "pricing.batch"
	TypeDone         = "pipeline.done"
	TypeFailed       = "pipeline.failed"
)

// Event is the payload published for every emit.
type Event struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Current int       `json:"current,omitempty"`
	Total   int       `json:"total,omitempty"`
	Path    string    `json:"path,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives progress events for a subscriber key.
type Sink interface {
	Emit(ctx context.Context, subscriberKey string, event Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, string, Event) {}

// Emit sends event through sink when a subscriber is attached. A nil sink or
// an empty key is a no-op.
func Emit(ctx context.Context, sink Sink, subscriberKey string, event Event) {
	if sink == nil || subscriberKey == "" {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	sink.Emit(ctx, subscriberKey, event)
}
