package events_test

import (
	"testing"

	"pixora/internal/events"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := events.NewHub(4)
	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	hub.Emit(events.ModelDownloading, true)

	for _, ch := range []<-chan events.Event{first, second} {
		evt := <-ch
		if evt.Name != events.ModelDownloading || evt.Payload != true || evt.Sequence != 1 {
			t.Fatalf("unexpected event %+v", evt)
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := events.NewHub(1)
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Emit(events.ExportProgress, events.Progress{Done: 1, Total: 3})
	hub.Emit(events.ExportProgress, events.Progress{Done: 2, Total: 3})

	if hub.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", hub.Dropped())
	}
	evt := <-ch
	if p, ok := evt.Payload.(events.Progress); !ok || p.Done != 1 {
		t.Fatalf("expected first progress event, got %+v", evt)
	}
}

func TestCancelUnsubscribes(t *testing.T) {
	hub := events.NewHub(1)
	ch, cancel := hub.Subscribe()
	cancel()
	cancel()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	hub.Emit(events.ModelDownloaded, true)
}

func TestMultiForwardsToEveryObserver(t *testing.T) {
	var got []string
	rec := events.ObserverFunc(func(name string, _ any) { got = append(got, name) })
	events.Multi{rec, nil, events.Nop{}, rec}.Emit(events.ModelDownloaded, true)
	if len(got) != 2 {
		t.Fatalf("expected two deliveries, got %v", got)
	}
}
