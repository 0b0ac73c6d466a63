package task

import (
	"time"
)

// Kind is the type of the orchestrated operation.
type Kind string

const (
	KindCheckIntegrity Kind = "check-integrity"
	KindSyncFacebook   Kind = "sync-facebook"
	KindSyncNative     Kind = "sync-native"
	KindUpdateReuse    Kind = "update-reuse"
	KindFullSync       Kind = "full-sync"
)

// Kinds returns all supported task kinds in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindCheckIntegrity,
		KindSyncFacebook,
		KindSyncNative,
		KindUpdateReuse,
		KindFullSync,
	}
}

// IsValid reports whether k belongs to the closed set of task kinds.
func (k Kind) IsValid() bool {
	for _, x := range Kinds() {
		if k == x {
			return true
		}
	}

	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal returns true for completed and failed states.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelStdout  Level = "stdout"
	LevelStderr  Level = "stderr"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
}

// Params is an opaque set of input arguments captured at creation time.
type Params map[string]interface{}

func (p Params) clone() Params {
	if p == nil {
		return nil
	}

	c := make(Params, len(p))

	for k, v := range p {
		c[k] = v
	}

	return c
}

// Record is a snapshot of a single task.
//
// Revision is incremented on every change of the record and is carried
// by every published event, so a subscriber can tell which events
// are already reflected in a snapshot it has read.
type Record struct {
	ID       string     `json:"id"`
	Type     Kind       `json:"type"`
	Params   Params     `json:"params"`
	Status   Status     `json:"status"`
	Progress int        `json:"progress"`
	Logs     []LogEntry `json:"logs"`

	Result interface{} `json:"result"`
	Error  string      `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`

	Revision uint64 `json:"revision"`
}

// Clone returns a deep enough copy of the record: the logs slice and
// the params map are copied, the result payload is shared.
func (r *Record) Clone() *Record {
	c := *r

	c.Params = r.Params.clone()

	c.Logs = make([]LogEntry, len(r.Logs))
	copy(c.Logs, r.Logs)

	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}

	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}

	return &c
}

// Summary returns a short form of the record used in task lists.
func (r *Record) Summary() *Summary {
	s := Summary{
		ID:        r.ID,
		Type:      r.Type,
		Status:    r.Status,
		Progress:  r.Progress,
		CreatedAt: r.CreatedAt,
	}

	if r.CompletedAt != nil {
		t := *r.CompletedAt
		s.CompletedAt = &t
	}

	return &s
}

type Summary struct {
	ID          string     `json:"id"`
	Type        Kind       `json:"type"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
}
