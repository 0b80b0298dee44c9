// Package events is a fire-and-forget notification bus for lifecycle points the
// host application (analytics, dashboards, telemetry) may want to observe.
// Delivery never blocks the publisher: a subscriber whose channel is full has
// the event dropped for it, matching the teacher's LobbyConnection.Write
// non-blocking-select idiom for outbound websocket messages.
package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind names the lifecycle point an Event describes.
type Kind string

const (
	KindEntryJoined      Kind = "entry_joined"
	KindEntryLeft        Kind = "entry_left"
	KindMatchFound       Kind = "match_found"
	KindLobbyStateChange Kind = "lobby_state_change"
	KindRatingUpdated    Kind = "rating_updated"
)

// Event is a single notification. Payload is kind-specific (e.g. the Entry for
// KindEntryJoined, the Match for KindMatchFound); consumers type-assert.
type Event struct {
	Kind      Kind
	At        time.Time
	Payload   any
	QueueName string
}

// Bus fans out published events to any number of subscribers without ever
// blocking the publisher.
type Bus struct {
	mu          sync.RWMutex
	subs        map[int]chan Event
	nextID      int
	dropped     uint64
	log         *logrus.Entry
	bufferDepth int
}

// NewBus constructs a Bus. log may be nil, in which case the logrus standard
// logger is used.
func NewBus(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{
		subs:        make(map[int]chan Event),
		log:         log,
		bufferDepth: 64,
	}
}

// Subscribe registers a new listener and returns its channel and an
// unsubscribe function. The channel is buffered; slow consumers lose events
// rather than stalling publishers.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferDepth)
	b.subs[id] = ch
	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Publish delivers evt to every current subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.dropped++
			b.log.WithFields(logrus.Fields{
				"event_kind": evt.Kind,
				"queue":      evt.QueueName,
			}).Warn("events: subscriber channel full, dropping event")
		}
	}
}

// Dropped returns the number of events dropped so far due to full subscriber
// buffers. Exposed for tests and for a host's own metrics, not used
// internally.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}
