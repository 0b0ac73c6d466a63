package task

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskFinished      = errors.New("task is already finished")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Manager is the single authority for task lifecycle transitions.
//
// Every change of a record is applied to the store first and then announced
// on the bus, so the store always remains the source of truth. Records
// in a terminal state (completed or failed) are frozen: any further
// mutation returns ErrTaskFinished and nothing is published.
//
// All methods are safe for concurrent use. Mutations of a single task are
// expected to come from one goroutine (the executor that owns the task),
// which gives subscribers a strict per-task event order.
type Manager struct {
	store *Store
	bus   *Bus
}

func NewManager(maxRecords int) *Manager {
	return &Manager{
		store: NewStore(maxRecords),
		bus:   NewBus(),
	}
}

// CreateTask registers a new pending task and returns its ID.
// Nothing is published since no one can be subscribed yet.
func (m *Manager) CreateTask(kind Kind, params Params) string {
	id := m.store.Create(kind, params)

	log.WithFields(log.Fields{"task-id": shortID(id), "task-type": kind}).Info("Task created")

	return id
}

// StartTask moves a pending task to the running state.
func (m *Manager) StartTask(id string) error {
	return m.update(id, func(r *Record) error {
		if r.Status.IsTerminal() {
			return ErrTaskFinished
		}

		if r.Status != StatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusRunning)
		}

		now := time.Now()

		r.Status = StatusRunning
		r.StartedAt = &now

		return nil
	})
}

// UpdateProgress sets the task progress. Values are clamped to 0..100,
// monotonicity is the caller's responsibility.
func (m *Manager) UpdateProgress(id string, progress int) error {
	switch {
	case progress < 0:
		progress = 0
	case progress > 100:
		progress = 100
	}

	return m.update(id, func(r *Record) error {
		if r.Status.IsTerminal() {
			return ErrTaskFinished
		}

		r.Progress = progress

		return nil
	})
}

// AddLog appends a log entry with a server-assigned timestamp
// and publishes it as a log event.
func (m *Manager) AddLog(id string, level Level, message string) error {
	entry, rev, found, err := m.store.mutateLog(id, func(r *Record) (LogEntry, error) {
		if r.Status.IsTerminal() {
			return LogEntry{}, ErrTaskFinished
		}

		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   message,
		}

		r.Logs = append(r.Logs, entry)

		return entry, nil
	})

	if !found {
		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}

	m.bus.Publish(id, Event{Type: EventLog, TaskID: id, Revision: rev, Log: &entry})

	return nil
}

// CompleteTask finishes the running task successfully with the given result.
// Progress is set to 100 regardless of its previous value.
func (m *Manager) CompleteTask(id string, result interface{}) error {
	return m.update(id, func(r *Record) error {
		if r.Status.IsTerminal() {
			return ErrTaskFinished
		}
		if r.Status != StatusRunning {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusCompleted)
		}

		now := time.Now()

		r.Status = StatusCompleted
		r.Result = result
		r.Progress = 100
		r.CompletedAt = &now

		return nil
	})
}

// FailTask finishes the running task with the message of the given error.
// Progress and logs are left as they are for diagnosis.
func (m *Manager) FailTask(id string, reason error) error {
	msg := "unknown error"

	if reason != nil && len(reason.Error()) > 0 {
		msg = reason.Error()
	}

	return m.update(id, func(r *Record) error {
		if r.Status.IsTerminal() {
			return ErrTaskFinished
		}
		if r.Status != StatusRunning {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusFailed)
		}

		now := time.Now()

		r.Status = StatusFailed
		r.Error = msg
		r.CompletedAt = &now

		return nil
	})
}

// GetTask returns a copy of the task record.
func (m *Manager) GetTask(id string) (*Record, bool) {
	return m.store.Get(id)
}

// ListTasks returns summaries of all retained tasks in creation order.
func (m *Manager) ListTasks() []*Summary {
	return m.store.List()
}

// Subscribe registers fn for all future events of the task.
//
// Past events are not replayed. To get the full history, subscribe first,
// then read the record with GetTask and skip the events whose revision
// is not greater than the revision of that record.
//
// The record carried by an update event is shared between all listeners
// and must be treated as read-only.
func (m *Manager) Subscribe(id string, fn Listener) SubscriptionID {
	return m.bus.Subscribe(id, fn)
}

// Unsubscribe removes a listener. It is idempotent.
func (m *Manager) Unsubscribe(id string, sub SubscriptionID) {
	m.bus.Unsubscribe(id, sub)
}

// Subscribers returns the number of live listeners of the task.
func (m *Manager) Subscribers(id string) int {
	return m.bus.Len(id)
}

func (m *Manager) update(id string, fn func(*Record) error) error {
	rec, found, err := m.store.Mutate(id, fn)

	if !found {
		log.WithField("task-id", shortID(id)).Debug("Update of unknown task is dropped")

		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}

	m.bus.Publish(id, Event{Type: EventUpdate, TaskID: id, Revision: rec.Revision, Task: rec})

	return nil
}
