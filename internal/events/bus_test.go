package events_test

import (
	"testing"
	"time"

	"trustlabel/internal/events"
	"trustlabel/internal/queue"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	first, cancelFirst := bus.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe(4)
	defer cancelSecond()

	entry := &queue.Entry{ID: "e1", Status: queue.StatusPending}
	bus.Publish(events.Event{Type: events.EntryCreated, Entry: entry})

	for name, ch := range map[string]<-chan events.Event{"first": first, "second": second} {
		select {
		case ev := <-ch:
			if ev.Type != events.EntryCreated || ev.Entry.ID != "e1" {
				t.Fatalf("%s subscriber got unexpected event %+v", name, ev)
			}
			if ev.At.IsZero() {
				t.Fatalf("%s subscriber event missing timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber never received the event", name)
		}
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	entry := &queue.Entry{ID: "e1"}
	bus.Publish(events.Event{Type: events.EntryCreated, Entry: entry})
	bus.Publish(events.Event{Type: events.EntryUpdated, Entry: entry})

	if got := bus.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}
	ev := <-ch
	if ev.Type != events.EntryCreated {
		t.Fatalf("expected the first event to survive, got %s", ev.Type)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(1)
	cancel()

	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after cancel")
	}
	// Publishing after cancel must not panic.
	bus.Publish(events.Event{Type: events.EntryCreated, Entry: &queue.Entry{ID: "e1"}})
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := events.NewBus()
	ch, _ := bus.Subscribe(1)
	bus.Close()

	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after bus shutdown")
	}

	// Subscribing after close yields a closed channel.
	late, _ := bus.Subscribe(1)
	if _, open := <-late; open {
		t.Fatal("expected closed channel for late subscriber")
	}
}
