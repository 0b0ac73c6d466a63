package task

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

type EventType string

const (
	EventLog    EventType = "log"
	EventUpdate EventType = "update"
)

// Event is a single notification about a task change.
//
// Log is set for EventLog, Task is set for EventUpdate.
type Event struct {
	Type     EventType `json:"type"`
	TaskID   string    `json:"-"`
	Revision uint64    `json:"-"`

	Log  *LogEntry `json:"log,omitempty"`
	Task *Record   `json:"task,omitempty"`
}

// Listener is called synchronously for every event published on a task
// it was subscribed to. It must not block for a long time since
// it runs on the goroutine of the publisher.
type Listener func(Event)

// SubscriptionID identifies a registered listener.
type SubscriptionID uint64

type subscriber struct {
	id SubscriptionID
	fn Listener
}

// Bus is a per-task fan-out of task events.
//
// There is no backlog: an event published when no one is listening
// is dropped. Listener lists are copied on write, so a publish
// that is in progress always iterates over a stable snapshot.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscriber
	nextID SubscriptionID
}

func NewBus() *Bus {
	return &Bus{
		topics: make(map[string][]subscriber),
	}
}

// Subscribe registers fn for all future events of the given task.
func (b *Bus) Subscribe(taskID string, fn Listener) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++

	subs := b.topics[taskID]

	updated := make([]subscriber, len(subs), len(subs)+1)
	copy(updated, subs)

	b.topics[taskID] = append(updated, subscriber{id: b.nextID, fn: fn})

	return b.nextID
}

// Unsubscribe removes a previously registered listener.
// Removing an unknown or already removed listener is a no-op.
func (b *Bus) Unsubscribe(taskID string, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[taskID]
	if !ok {
		return
	}

	updated := make([]subscriber, 0, len(subs))

	for _, s := range subs {
		if s.id != id {
			updated = append(updated, s)
		}
	}

	if len(updated) == 0 {
		delete(b.topics, taskID)
	} else {
		b.topics[taskID] = updated
	}
}

// Publish delivers ev to every listener of the task in registration order.
// A panicking listener does not prevent delivery to the others.
func (b *Bus) Publish(taskID string, ev Event) {
	b.mu.RLock()
	subs := b.topics[taskID]
	b.mu.RUnlock()

	for _, s := range subs {
		if err := deliver(s.fn, ev); err != nil {
			log.WithFields(log.Fields{
				"task-id":      shortID(taskID),
				"subscription": s.id,
			}).Errorf("Listener failed: %s", err)
		}
	}
}

// Len returns the number of listeners of the given task.
func (b *Bus) Len(taskID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.topics[taskID])
}

func deliver(fn Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	fn(ev)

	return nil
}
