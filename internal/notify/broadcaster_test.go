package notify

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/neboman11/any-player-sync-server/internal/document"
)

func testEvent(version int64) Event {
	return Event{
		EventType: EventTypeStateUpdated,
		Namespace: document.NamespaceSettings,
		Version:   version,
		UpdatedAt: time.Now().UTC(),
	}
}

func drain(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	for len(events) < n {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestKeepingUpSubscriberSeesEveryEventInOrder(t *testing.T) {
	b := NewBroadcaster(512, zap.NewNop())
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	const total = 100
	for v := int64(1); v <= total; v++ {
		b.Publish(testEvent(v))
	}

	events := drain(t, sub, total)
	for i, ev := range events {
		if ev.Version != int64(i+1) {
			t.Fatalf("event %d has version %d, want %d", i, ev.Version, i+1)
		}
	}
	if dropped := sub.TakeDropped(); dropped != 0 {
		t.Errorf("expected no drops, got %d", dropped)
	}
}

func TestLaggingSubscriberLosesOldestButStaysSubscribed(t *testing.T) {
	b := NewBroadcaster(512, zap.NewNop())
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	// 600 events into a 512 backlog with no draining: the first 88 are gone.
	const total = 600
	for v := int64(1); v <= total; v++ {
		b.Publish(testEvent(v))
	}

	if dropped := sub.TakeDropped(); dropped != total-512 {
		t.Fatalf("expected %d dropped events, got %d", total-512, dropped)
	}

	events := drain(t, sub, 512)
	if events[0].Version != total-512+1 {
		t.Errorf("first surviving event has version %d, want %d", events[0].Version, total-512+1)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Version != events[i-1].Version+1 {
			t.Fatalf("surviving events out of order at %d: %d after %d", i, events[i].Version, events[i-1].Version)
		}
	}

	// Lag is degradation, not disconnection: later events still arrive.
	b.Publish(testEvent(total + 1))
	got := drain(t, sub, 1)
	if got[0].Version != total+1 {
		t.Errorf("post-lag event has version %d, want %d", got[0].Version, total+1)
	}
	select {
	case <-sub.Done():
		t.Fatal("lagging subscriber must not be disconnected")
	default:
	}
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewBroadcaster(4, zap.NewNop())
	defer b.Close()

	slow := b.Subscribe()
	defer b.Unsubscribe(slow)
	fast := b.Subscribe()
	defer b.Unsubscribe(fast)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := int64(1); v <= 1000; v++ {
			b.Publish(testEvent(v))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// The fast subscriber's own backlog holds its newest events.
	if len(fast.Events()) != 4 {
		t.Errorf("expected fast backlog full at 4, got %d", len(fast.Events()))
	}
}

func TestUnsubscribeDiscardsInFlightDelivery(t *testing.T) {
	b := NewBroadcaster(8, zap.NewNop())
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	select {
	case <-sub.Done():
	default:
		t.Fatal("unsubscribed subscription should be done")
	}

	// Publishing after removal must be a no-op for this subscription.
	b.Publish(testEvent(1))
	if len(sub.Events()) != 0 {
		t.Error("unsubscribed subscription received an event")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	// Unsubscribe is idempotent.
	b.Unsubscribe(sub)
}

func TestCloseWakesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(8, zap.NewNop())

	subs := []*Subscription{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	b.Close()

	for i, sub := range subs {
		select {
		case <-sub.Done():
		case <-time.After(time.Second):
			t.Fatalf("subscription %d not woken by Close", i)
		}
	}

	// Subscriptions taken after Close are born done.
	late := b.Subscribe()
	select {
	case <-late.Done():
	default:
		t.Fatal("subscription after Close should be done")
	}
}
