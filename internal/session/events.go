package session

import (
	"sync"

	"github.com/ashureev/stresssense/internal/domain"
)

// EventType names a state change.
type EventType string

const (
	EventSessionCreated  EventType = "session_created"
	EventCurrentChanged  EventType = "current_changed"
	EventMessageAppended EventType = "message_appended"
	EventStressUpdated   EventType = "stress_updated"
	EventTurnStarted     EventType = "turn_started"
	EventTurnCompleted   EventType = "turn_completed"
)

// Event describes a committed change to the check-in state.
type Event struct {
	Type      EventType
	SessionID domain.SessionID
	// Message is set for EventMessageAppended.
	Message *domain.Message
	// StressLevel is set for EventStressUpdated.
	StressLevel string
	// Outcome is the gateway classification for EventTurnCompleted.
	Outcome string
}

// Observer receives events. Notify runs on the goroutine that made the change
// and must not block.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f(ev).
func (f ObserverFunc) Notify(ev Event) { f(ev) }

// Bus fans events out to subscribed observers in subscription order.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	observers map[int]Observer
	order     []int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{observers: make(map[int]Observer)}
}

// Subscribe registers o and returns a func that removes it.
func (b *Bus) Subscribe(o Observer) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.observers[id] = o
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.observers, id)
			for i, oid := range b.order {
				if oid == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every observer before returning.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.order))
	for _, id := range b.order {
		observers = append(observers, b.observers[id])
	}
	b.mu.RUnlock()

	for _, o := range observers {
		o.Notify(ev)
	}
}
