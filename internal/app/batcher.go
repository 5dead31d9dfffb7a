package app

import (
	"time"

	"github.com/bft-labs/stamper/internal/domain"
)

// Batcher accumulates events until a size or time trigger fires.
type Batcher struct {
	events        []*domain.Event
	bytes         int
	maxEvents     int
	maxBytes      int
	flushInterval time.Duration
	lastFlush     time.Time
}

// NewBatcher creates a batcher. A non-positive maxBytes disables the byte
// trigger.
func NewBatcher(maxEvents, maxBytes int, flushInterval time.Duration) *Batcher {
	if maxEvents <= 0 {
		maxEvents = 1
	}
	return &Batcher{
		events:        make([]*domain.Event, 0, maxEvents),
		maxEvents:     maxEvents,
		maxBytes:      maxBytes,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
	}
}

// Add appends e and reports whether the batch is full.
func (b *Batcher) Add(e *domain.Event) bool {
	b.events = append(b.events, e)
	b.bytes += e.Size()

	if len(b.events) >= b.maxEvents {
		return true
	}
	return b.maxBytes > 0 && b.bytes >= b.maxBytes
}

// ShouldFlush reports whether pending events have waited a full interval.
func (b *Batcher) ShouldFlush() bool {
	if len(b.events) == 0 {
		return false
	}
	return time.Since(b.lastFlush) >= b.flushInterval
}

// NextFlushIn returns how long until pending events are due. With nothing
// pending it returns the full interval.
func (b *Batcher) NextFlushIn() time.Duration {
	if len(b.events) == 0 {
		return b.flushInterval
	}
	if d := b.flushInterval - time.Since(b.lastFlush); d > 0 {
		return d
	}
	return 0
}

// Take returns the pending events in arrival order and starts a new batch.
func (b *Batcher) Take() []*domain.Event {
	events := b.events
	b.events = make([]*domain.Event, 0, b.maxEvents)
	b.bytes = 0
	b.lastFlush = time.Now()
	return events
}

// HasPending returns true if there are events waiting to be flushed.
func (b *Batcher) HasPending() bool {
	return len(b.events) > 0
}

// Len returns the number of pending events.
func (b *Batcher) Len() int {
	return len(b.events)
}

// Bytes returns the total body size of pending events.
func (b *Batcher) Bytes() int {
	return b.bytes
}
