package busserver

import "github.com/eventbus-fabric/eventbus/internal/envelope"

// Sink is the downstream handoff boundary (spec.md §4.7 step 9), outside
// this spec's scope: a channel, a log, a forwarder. BoundedChannelSink is
// the in-process implementation used by cmd/eventbus; anything bounded and
// non-blocking satisfies the interface.
type Sink interface {
	// Enqueue attempts to hand e to the sink without blocking. false means
	// the sink is saturated and the caller must ack RETRY rather than
	// silently drop the envelope.
	Enqueue(e *envelope.Envelope) bool
}

// BoundedChannelSink is a fixed-capacity channel sink (spec.md §6
// `sink_buffer`, default 1024).
type BoundedChannelSink struct {
	ch chan *envelope.Envelope
}

// NewBoundedChannelSink creates a sink with the given buffer capacity.
func NewBoundedChannelSink(capacity int) *BoundedChannelSink {
	if capacity <= 0 {
		capacity = 1024
	}
	return &BoundedChannelSink{ch: make(chan *envelope.Envelope, capacity)}
}

// Enqueue implements Sink.
func (s *BoundedChannelSink) Enqueue(e *envelope.Envelope) bool {
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

// C exposes the receive side for a downstream consumer goroutine.
func (s *BoundedChannelSink) C() <-chan *envelope.Envelope {
	return s.ch
}
