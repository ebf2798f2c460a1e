package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for in-process broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish delivers an event to all subscribers of its concrete type.
// Usage: bus.Publish(UnitStatusChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type, so each concrete
	// event needs its own case.
	switch e := ev.(type) {
	case UnitCreatedEvent:
		event.Publish(b.dispatcher, e)
	case UnitUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case UnitDeletedEvent:
		event.Publish(b.dispatcher, e)
	case UnitStatusChangedEvent:
		event.Publish(b.dispatcher, e)
	case DestinationHealthEvent:
		event.Publish(b.dispatcher, e)
	case FailoverEvent:
		event.Publish(b.dispatcher, e)
	case ReconnectEvent:
		event.Publish(b.dispatcher, e)
	case UnitMetricsEvent:
		event.Publish(b.dispatcher, e)
	case EngineStatusEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects
// which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e UnitStatusChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(UnitCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UnitUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UnitDeletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UnitStatusChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DestinationHealthEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FailoverEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ReconnectEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(UnitMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EngineStatusEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges a subscription to a channel, which the SSE
// handlers consume in a select loop. Sends are non-blocking; events are
// dropped when the channel is full rather than stalling the dispatcher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
