package eventbus

import (
	"reflect"
	"sync"
)

// Handler is a function that handles an event.
type Handler func(event interface{})

// EventBus provides in-process pub/sub keyed by event type. The set of event
// types is the closed enumeration in pkg/model/events.go; handlers subscribe
// with a zero value of the event they care about.
type EventBus struct {
	handlers map[reflect.Type][]Handler
	mu       sync.RWMutex
}

// New creates a new EventBus.
func New() *EventBus {
	return &EventBus{
		handlers: make(map[reflect.Type][]Handler),
	}
}

// Subscribe registers a handler for the concrete type of eventType.
func (e *EventBus) Subscribe(eventType interface{}, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := reflect.TypeOf(eventType)
	e.handlers[t] = append(e.handlers[t], handler)
}

// Publish delivers an event asynchronously to all subscribers of its type.
func (e *EventBus) Publish(event interface{}) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, handler := range e.handlers[reflect.TypeOf(event)] {
		go handler(event)
	}
}

// PublishSync delivers an event synchronously to all subscribers of its type.
// Used where the caller needs the handlers (e.g. an optimistic cache patch)
// to have run before it continues.
func (e *EventBus) PublishSync(event interface{}) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, handler := range e.handlers[reflect.TypeOf(event)] {
		handler(event)
	}
}

// HasSubscribers returns true if there are subscribers for the event type.
func (e *EventBus) HasSubscribers(eventType interface{}) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	handlers, ok := e.handlers[reflect.TypeOf(eventType)]
	return ok && len(handlers) > 0
}

// SubscriberCount returns the number of subscribers for an event type.
func (e *EventBus) SubscriberCount(eventType interface{}) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[reflect.TypeOf(eventType)])
}
