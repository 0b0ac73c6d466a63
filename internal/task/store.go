package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const DefaultMaxRecords = 100

// Store is an in-memory, order-preserving table of task records.
//
// The store keeps at most a limited number of records. When a new record
// exceeds the limit, the oldest one (by creation order) is evicted.
// Records are never removed in any other way.
type Store struct {
	mu    sync.Mutex
	table map[string]*Record
	order []string
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultMaxRecords
	}

	return &Store{
		table: make(map[string]*Record),
		order: make([]string, 0, limit+1),
		limit: limit,
	}
}

// Create inserts a new pending record and returns its ID.
func (s *Store) Create(kind Kind, params Params) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()

	for {
		if _, found := s.table[id]; !found {
			break
		}
		id = uuid.New().String()
	}

	s.table[id] = &Record{
		ID:        id,
		Type:      kind,
		Params:    params.clone(),
		Status:    StatusPending,
		Logs:      make([]LogEntry, 0),
		CreatedAt: time.Now(),
	}

	s.order = append(s.order, id)

	for len(s.order) > s.limit {
		oldest := s.order[0]

		s.order[0] = ""
		s.order = s.order[1:]

		delete(s.table, oldest)

		log.WithField("task-id", shortID(oldest)).Debug("Evicted from the task store")
	}

	return id
}

// Get returns a copy of the record with the given ID.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, found := s.table[id]; found {
		return r.Clone(), true
	}

	return nil, false
}

// List returns summaries of all retained records in creation order.
func (s *Store) List() []*Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]*Summary, 0, len(s.order))

	for _, id := range s.order {
		summaries = append(summaries, s.table[id].Summary())
	}

	return summaries
}

// Len returns the number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.order)
}

// Mutate applies fn to the record with the given ID.
//
// A missing record is not an error: Mutate returns found == false and
// fn is not called. If fn returns an error, the record must be left
// unchanged by fn and the error is returned as is. On success the record
// revision is incremented and a copy of the updated record is returned.
func (s *Store) Mutate(id string, fn func(*Record) error) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.table[id]
	if !found {
		return nil, false, nil
	}

	if err := fn(r); err != nil {
		return nil, true, err
	}

	r.Revision++

	return r.Clone(), true, nil
}

// mutateLog appends a log entry and returns a copy of that entry only,
// so that the frequent log path does not copy the whole record.
func (s *Store) mutateLog(id string, fn func(*Record) (LogEntry, error)) (LogEntry, uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, found := s.table[id]
	if !found {
		return LogEntry{}, 0, false, nil
	}

	entry, err := fn(r)
	if err != nil {
		return LogEntry{}, 0, true, err
	}

	r.Revision++

	return entry, r.Revision, true, nil
}
