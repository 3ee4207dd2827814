// Package bus implements the observer bus (C9): a handle-based topic
// registry that lets dispo, the daemon's roster refresh and the orchestrator notify loosely
// coupled collaborators (a websocket ticker feed, a log sink, a test spy)
// without those collaborators needing to unregister defensively.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Handle identifies one subscription. It is a UUID rather than a bare
// counter so a collaborator handed a Handle by one Bus cannot forge or
// guess another subscriber's handle.
type Handle uuid.UUID

// Event is one published notification.
type Event struct {
	Topic   string
	Payload interface{}
}

type subscription struct {
	handle Handle
	topic  string
	fn     func(Event)
}

// Bus is a topic-addressed pub/sub registry, safe for concurrent use from
// the orchestrator's refresh goroutine and any ingest/dispo callers.
type Bus struct {
	mu    sync.Mutex
	subs  []subscription
	dirty map[string]bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{dirty: make(map[string]bool)}
}

// Subscribe registers fn to receive every Event published to topic,
// returning a Handle for later Unsubscribe.
func (b *Bus) Subscribe(topic string, fn func(Event)) Handle {
	h := Handle(uuid.New())
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{handle: h, topic: topic, fn: fn})
	return h
}

// Unsubscribe removes one subscription. Unsubscribing an unknown or
// already-removed handle is a no-op.
func (b *Bus) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.handle == h {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every current subscriber of topic,
// synchronously and in subscription order.
func (b *Bus) Publish(topic string, payload interface{}) {
	b.mu.Lock()
	var subs []subscription
	for _, s := range b.subs {
		if s.topic == topic {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, s := range subs {
		s.fn(ev)
	}
}

// Trigger marks topic dirty without notifying subscribers yet. Callers
// that fire many times per refresh cycle (dispo's per-operation commit,
// the daemon's per-refresh anlage_changed) call Trigger; the orchestrator calls Flush
// once per cycle, collapsing any number of triggers into one delivery —
// the same triggered/notify split the teacher's original observer took
// deferring notification to its own processing loop.
func (b *Bus) Trigger(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty[topic] = true
}

// Flush publishes a nil-payload Event for every topic marked dirty since
// the last Flush, then clears the dirty set.
func (b *Bus) Flush() {
	b.mu.Lock()
	topics := make([]string, 0, len(b.dirty))
	for t := range b.dirty {
		topics = append(topics, t)
	}
	b.dirty = make(map[string]bool)
	b.mu.Unlock()

	for _, t := range topics {
		b.Publish(t, nil)
	}
}
