package notify

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscription backlog capacity.
const DefaultBufferSize = 512

// Broadcaster fans committed-write events out to every live subscription.
// Publish never blocks: a subscriber that stops draining its backlog loses
// its oldest events and is told about the gap, but is never disconnected and
// never slows down the writer or other subscribers.
type Broadcaster struct {
	logger *zap.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is one subscriber's bounded backlog. The backlog is owned by
// this subscription alone; Done is closed when the subscription is removed or
// the broadcaster shuts down.
type Subscription struct {
	events  chan Event
	done    chan struct{}
	dropped atomic.Uint64
}

// Events is the backlog to drain. The channel is never closed; watch Done to
// learn the subscription is finished.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed on Unsubscribe or broadcaster Close.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// TakeDropped returns how many events were evicted since the last call and
// resets the counter. A non-zero result means the subscriber lagged and must
// re-synchronize with a full document read.
func (s *Subscription) TakeDropped() uint64 {
	return s.dropped.Swap(0)
}

// offer enqueues without ever blocking, evicting the oldest buffered event
// when the backlog is full. Both selects are non-blocking so a concurrently
// draining consumer cannot stall the publisher.
func (s *Subscription) offer(ev Event) (evicted uint64) {
	for {
		select {
		case s.events <- ev:
			return evicted
		default:
		}
		select {
		case <-s.events:
			s.dropped.Add(1)
			evicted++
		default:
		}
	}
}

func NewBroadcaster(bufferSize int, logger *zap.Logger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		logger: logger,
		buffer: bufferSize,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new bounded backlog. A subscription obtained after
// Close is already done.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		events: make(chan Event, b.buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.done)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes the subscription and wakes its consumer. Safe to call
// more than once and safe to race with Publish.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.done)
	}
}

// Publish offers the event to every live subscription's backlog.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if evicted := sub.offer(ev); evicted > 0 {
			b.logger.Debug("subscriber backlog full, evicted oldest events",
				zap.Uint64("evicted", evicted),
				zap.Int64("version", ev.Version),
			)
		}
	}
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes every subscription and marks the broadcaster shut down.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.done)
	}
	b.subs = make(map[*Subscription]struct{})
}
