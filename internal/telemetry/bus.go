package telemetry

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for pipeline telemetry.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new telemetry bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(FrameDroppedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event's Publish is generic over the concrete type, so
	// dispatch through a type switch over the closed event set.
	switch e := ev.(type) {
	case StreamStateEvent:
		event.Publish(b.dispatcher, e)
	case FrameDroppedEvent:
		event.Publish(b.dispatcher, e)
	case StatsResetEvent:
		event.Publish(b.dispatcher, e)
	case DeviceErrorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler function; the handler's parameter type
// selects which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e FrameDroppedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StreamStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameDroppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StatsResetEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
