package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/wtcops/resyncd/internal/appconf"
	"github.com/wtcops/resyncd/internal/metrics"
	"github.com/wtcops/resyncd/internal/runner"
	"github.com/wtcops/resyncd/internal/task"

	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknownKind    = errors.New("unknown task type")
	ErrExecutorClosed = errors.New("executor is closed")

	ErrIntegrityCheckFailed = errors.New("integrity check failed")
	ErrFacebookSyncFailed   = errors.New("facebook sync failed")
	ErrNativeSyncFailed     = errors.New("native sync failed")
)

// Executor runs the resource tasks in the background. It is the only
// writer of the records it drives, all transitions go through
// the task manager.
type Executor struct {
	tasks   *task.Manager
	runner  runner.Runner
	metrics *metrics.Recorder

	paths         appconf.PathsParams
	project       string
	versionOffset int

	mu       sync.Mutex
	wg       sync.WaitGroup
	running  int
	isClosed bool
}

func New(tasks *task.Manager, r runner.Runner, conf *appconf.Config, rec *metrics.Recorder) *Executor {
	return &Executor{
		tasks:         tasks,
		runner:        r,
		metrics:       rec,
		paths:         conf.Paths,
		project:       conf.Tasks.Project,
		versionOffset: conf.Tasks.VersionOffset,
	}
}

// Validate checks the parameters of a task of the given kind
// without creating anything.
func (e *Executor) Validate(kind task.Kind, params task.Params) (*Args, error) {
	return parseArgs(kind, params, e.versionOffset)
}

// Submit validates the parameters, creates a pending task and starts it
// in the background. The returned ID is immediately usable for status
// queries and subscriptions.
func (e *Executor) Submit(kind task.Kind, params task.Params) (string, error) {
	args, err := e.Validate(kind, params)
	if err != nil {
		return "", err
	}

	e.mu.Lock()

	if e.isClosed {
		e.mu.Unlock()

		return "", ErrExecutorClosed
	}

	e.wg.Add(1)
	e.running++

	e.mu.Unlock()

	id := e.tasks.CreateTask(kind, args.Params(kind))

	e.metrics.TaskCreated(context.Background(), string(kind))

	go func() {
		defer func() {
			e.mu.Lock()
			e.running--
			e.mu.Unlock()

			e.wg.Done()
		}()

		e.Execute(id)
	}()

	return id, nil
}

// Execute drives an existing pending task to a terminal state.
// It blocks until the task is finished.
func (e *Executor) Execute(id string) {
	rec, ok := e.tasks.GetTask(id)
	if !ok {
		log.WithField("task-id", id).Warn("Unable to execute: task not found")

		return
	}

	sid, err := task.GetShortID(rec.ID)
	if err != nil {
		sid = rec.ID
	}

	logger := log.WithFields(log.Fields{"task-id": sid, "task-type": rec.Type})

	ctx := context.Background()

	if err := e.tasks.StartTask(id); err != nil {
		logger.Errorf("Unable to start: %s", err)

		return
	}

	started := time.Now()

	result, err := e.run(ctx, logger, rec)

	status := task.StatusCompleted

	if err == nil {
		logger.Info("Successfully completed")

		err = e.tasks.CompleteTask(id, result)
	} else {
		logger.Errorf("Fatal error: %s", err)

		status = task.StatusFailed

		err = e.tasks.FailTask(id, err)
	}

	if err != nil {
		// Most likely the record has been evicted in the meantime
		logger.Warnf("Unable to finalize: %s", err)
	}

	e.metrics.TaskFinished(ctx, string(rec.Type), string(status), time.Since(started))
}

func (e *Executor) run(ctx context.Context, logger *log.Entry, rec *task.Record) (res interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("Recovered from panic: %v\n%s", p, debug.Stack())

			res = nil
			err = fmt.Errorf("unexpected error: %v", p)
		}
	}()

	args, err := e.Validate(rec.Type, rec.Params)
	if err != nil {
		return nil, err
	}

	j := job{
		Executor: e,
		ctx:      ctx,
		id:       rec.ID,
		logger:   logger,
	}

	switch rec.Type {
	case task.KindCheckIntegrity:
		return j.checkIntegrity(args.Version, true), nil
	case task.KindSyncFacebook:
		return j.syncFacebook(args.Version), nil
	case task.KindSyncNative:
		return j.syncNative(args.Version), nil
	case task.KindUpdateReuse:
		return j.updateReuse(args.Version, args.nginxReuseVersion), nil
	case task.KindFullSync:
		return j.fullSync(args.Version, args.SkipCheck)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, rec.Type)
}

// Running returns the number of tasks submitted and not yet finished.
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running
}

// Close stops accepting new tasks. Running tasks are not interrupted.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.isClosed = true
}

// Wait blocks until all submitted tasks are finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) WaitAndClose() {
	e.Close()
	e.Wait()
}
