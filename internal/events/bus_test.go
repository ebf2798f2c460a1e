package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// capture subscribes a buffering channel for one event type and
// unsubscribes on cleanup.
func capture[T Event](t *testing.T, bus *Bus) <-chan T {
	t.Helper()
	out := make(chan T, 16)
	unsub := bus.Subscribe(func(e T) { out <- e })
	t.Cleanup(unsub)
	return out
}

func expectOne[T Event](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return *new(T)
	}
}

func expectNone[T Event](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := New()
	ch := capture[UnitStatusChangedEvent](t, bus)

	bus.Publish(UnitStatusChangedEvent{
		UnitID:    "unit_1",
		Name:      "Main Show",
		OldStatus: "inactive",
		NewStatus: "active",
		Timestamp: "2025-01-27T10:30:00Z",
	})

	got := expectOne(t, ch)
	if got.UnitID != "unit_1" || got.NewStatus != "active" {
		t.Errorf("got %+v, want unit_1 transitioning to active", got)
	}
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := New()
	first := capture[FailoverEvent](t, bus)
	second := capture[FailoverEvent](t, bus)

	bus.Publish(FailoverEvent{
		UnitID:    "unit_1",
		PrimaryID: "twitch_9f3ac2",
		BackupID:  "youtube_b41e77",
		Action:    "triggered",
	})

	expectOne(t, first)
	expectOne(t, second)
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	ch := make(chan DestinationHealthEvent, 1)
	unsub := bus.Subscribe(func(e DestinationHealthEvent) { ch <- e })

	bus.Publish(DestinationHealthEvent{UnitID: "unit_1", DestinationID: "twitch_9f3ac2"})
	expectOne(t, (<-chan DestinationHealthEvent)(ch))

	unsub()
	bus.Publish(DestinationHealthEvent{UnitID: "unit_1", DestinationID: "twitch_9f3ac2"})
	expectNone(t, (<-chan DestinationHealthEvent)(ch))
}

func TestBusRoutesByEventType(t *testing.T) {
	bus := New()
	statuses := capture[UnitStatusChangedEvent](t, bus)
	health := capture[DestinationHealthEvent](t, bus)

	bus.Publish(UnitStatusChangedEvent{UnitID: "unit_1"})
	expectOne(t, statuses)
	expectNone(t, health)

	bus.Publish(DestinationHealthEvent{UnitID: "unit_1"})
	expectOne(t, health)
	expectNone(t, statuses)
}

func TestBusConcurrentPublishers(t *testing.T) {
	bus := New()
	const publishers = 10
	const perPublisher = 100
	const total = publishers * perPublisher

	var count atomic.Int32
	done := make(chan struct{})
	unsub := bus.Subscribe(func(ReconnectEvent) {
		if count.Add(1) == total {
			close(done)
		}
	})
	defer unsub()

	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perPublisher {
				bus.Publish(ReconnectEvent{UnitID: "unit_1", Action: "scheduled"})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("received %d of %d events", count.Load(), total)
	}
}

// Every concrete event type must route through Publish's dispatch.
func TestBusCoversAllEventTypes(t *testing.T) {
	bus := New()

	created := capture[UnitCreatedEvent](t, bus)
	updated := capture[UnitUpdatedEvent](t, bus)
	deleted := capture[UnitDeletedEvent](t, bus)
	status := capture[UnitStatusChangedEvent](t, bus)
	health := capture[DestinationHealthEvent](t, bus)
	failover := capture[FailoverEvent](t, bus)
	reconnect := capture[ReconnectEvent](t, bus)
	unitMetrics := capture[UnitMetricsEvent](t, bus)
	engine := capture[EngineStatusEvent](t, bus)
	logs := capture[LogEntryEvent](t, bus)

	bus.Publish(UnitCreatedEvent{UnitID: "unit_1"})
	bus.Publish(UnitUpdatedEvent{UnitID: "unit_1"})
	bus.Publish(UnitDeletedEvent{UnitID: "unit_1"})
	bus.Publish(UnitStatusChangedEvent{UnitID: "unit_1"})
	bus.Publish(DestinationHealthEvent{UnitID: "unit_1"})
	bus.Publish(FailoverEvent{UnitID: "unit_1"})
	bus.Publish(ReconnectEvent{UnitID: "unit_1"})
	bus.Publish(UnitMetricsEvent{UnitID: "unit_1"})
	bus.Publish(EngineStatusEvent{Available: true})
	bus.Publish(LogEntryEvent{Message: "hello"})

	expectOne(t, created)
	expectOne(t, updated)
	expectOne(t, deleted)
	expectOne(t, status)
	expectOne(t, health)
	expectOne(t, failover)
	expectOne(t, reconnect)
	expectOne(t, unitMetrics)
	expectOne(t, engine)
	expectOne(t, logs)
}

// SSE clients consume these payloads by key, so the wire names are a
// contract.
func TestFailoverEventWireFormat(t *testing.T) {
	data, err := json.Marshal(FailoverEvent{
		UnitID:    "unit_1",
		PrimaryID: "twitch_9f3ac2",
		BackupID:  "youtube_b41e77",
		Action:    "triggered",
		Timestamp: "2025-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"unit_id", "primary_id", "backup_id", "action", "timestamp"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire form missing %q: %s", key, data)
		}
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[EngineStatusEvent](bus, ch)
	defer unsub()

	bus.Publish(EngineStatusEvent{Available: true, Processes: 3})

	got := <-ch
	ev, ok := got.(EngineStatusEvent)
	if !ok {
		t.Fatalf("expected EngineStatusEvent, got %T", got)
	}
	if !ev.Available || ev.Processes != 3 {
		t.Errorf("got %+v, want available with 3 processes", ev)
	}
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any) // unbuffered, nothing reading

	unsub := SubscribeToChannel[UnitCreatedEvent](bus, ch)
	defer unsub()

	done := make(chan struct{})
	go func() {
		bus.Publish(UnitCreatedEvent{UnitID: "unit_1"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}
