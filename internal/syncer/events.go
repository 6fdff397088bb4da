package syncer

import (
	"context"
	"sync"
	"time"
)

// EventType enumerates sync progress notifications delivered to the UI layer.
type EventType string

const (
	EventSubmissionSynced  EventType = "submission-synced"
	EventSubmissionFailed  EventType = "submission-failed"
	EventBadgesEarned      EventType = "badges-earned"
	EventPassCompleted     EventType = "pass-completed"
	EventQueueItemAcked    EventType = "queue-item-acked"
	EventQueueItemDeferred EventType = "queue-item-deferred"
)

// Event carries one sync engine notification.
type Event struct {
	Type         EventType
	SubmissionID string
	QueueID      string
	PointsEarned int
	Badges       []string
	Err          error
	Timestamp    time.Time
}

type eventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*eventSubscriber
	nextID      int64
	bufferSize  int
}

type eventSubscriber struct {
	id     int64
	stream chan Event
}

func newEventDispatcher() *eventDispatcher {
	return &eventDispatcher{
		subscribers: make(map[int64]*eventSubscriber),
		bufferSize:  16,
	}
}

func (d *eventDispatcher) subscribe(ctx context.Context) (<-chan Event, func()) {
	subscriber := &eventSubscriber{
		id:     d.nextSequence(),
		stream: make(chan Event, d.bufferSize),
	}
	d.mu.Lock()
	d.subscribers[subscriber.id] = subscriber
	d.mu.Unlock()

	// The stream is never closed: publish may still hold a reference after
	// unsubscribe, and sending on a closed channel would panic the pass.
	// Consumers select on their ctx instead of ranging to completion.
	cleanup := func() {
		d.mu.Lock()
		delete(d.subscribers, subscriber.id)
		d.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// publish delivers the event to every subscriber without blocking; a slow
// subscriber drops events rather than stalling the sync pass.
func (d *eventDispatcher) publish(event Event) {
	d.mu.RLock()
	copies := make([]*eventSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *eventDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}
