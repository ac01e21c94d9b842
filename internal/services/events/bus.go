package events

import (
	"sync"

	"github.com/rs/zerolog"

	"kepler-fleet/internal/models"
)

// Subscriber consumes worker lifecycle events. Publish is called from the
// supervisor's goroutines and must not block.
type Subscriber interface {
	Publish(ev models.WorkerEvent)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ev models.WorkerEvent)

func (f SubscriberFunc) Publish(ev models.WorkerEvent) { f(ev) }

// Bus fans every event out to its subscribers in registration order and keeps
// a short history of recent events.
type Bus struct {
	log zerolog.Logger

	mu      sync.RWMutex
	subs    []Subscriber
	recent  []models.WorkerEvent
	history int
}

func NewBus(history int, logger zerolog.Logger) *Bus {
	return &Bus{log: logger, history: history}
}

func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
}

func (b *Bus) Publish(ev models.WorkerEvent) {
	b.mu.Lock()
	if b.history > 0 {
		b.recent = append(b.recent, ev)
		if len(b.recent) > b.history {
			b.recent = b.recent[len(b.recent)-b.history:]
		}
	}
	subs := append([]Subscriber(nil), b.subs...)
	b.mu.Unlock()

	b.log.Debug().
		Int("camera_id", ev.CameraID).
		Str("kind", string(ev.Kind)).
		Int("pid", ev.PID).
		Msg("Worker event")

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

// Recent returns up to the last history events, oldest first.
func (b *Bus) Recent() []models.WorkerEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.WorkerEvent(nil), b.recent...)
}

func (b *Bus) deliver(s Subscriber, ev models.WorkerEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Int("camera_id", ev.CameraID).Msg("Event subscriber panicked")
		}
	}()
	s.Publish(ev)
}
