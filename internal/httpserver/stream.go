package httpserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/wtcops/resyncd/internal/task"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// eventQueue is an unbounded FIFO between the publisher and the stream
// writer. Push never blocks.
type eventQueue struct {
	mu     sync.Mutex
	items  []task.Event
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		signal: make(chan struct{}, 1),
	}
}

func (q *eventQueue) push(ev task.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []task.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil

	return items
}

// streamTask sends the task state and its further changes as server-sent
// events until the task is finished or the client goes away.
func (s *Server) streamTask(c *gin.Context) {
	id := c.Param("id")

	// Subscribe before reading the snapshot, so that nothing
	// happening in between is lost.
	queue := newEventQueue()

	sub := s.tasks.Subscribe(id, queue.push)
	defer s.tasks.Unsubscribe(id, sub)

	snapshot, ok := s.tasks.GetTask(id)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("Task not found"))

		return
	}

	logger := log.WithFields(log.Fields{"task-id": snapshot.ID, "ip": c.ClientIP()})

	logger.Info("Stream started")
	defer logger.Info("Stream closed")

	h := c.Writer.Header()

	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	c.Status(http.StatusOK)

	c.SSEvent(FrameConnected, &Frame{Type: FrameConnected, Task: snapshot})

	for i := range snapshot.Logs {
		c.SSEvent(FrameLog, &Frame{Type: FrameLog, Log: &snapshot.Logs[i]})
	}

	c.Writer.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	var end <-chan time.Time

	if snapshot.Status.IsTerminal() {
		end = time.After(s.endDelay)
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-queue.signal:
			for _, ev := range queue.drain() {
				if ev.Revision <= snapshot.Revision {
					// Already part of the snapshot
					continue
				}

				c.SSEvent(string(ev.Type), &ev)

				if end == nil && ev.Type == task.EventUpdate && ev.Task.Status.IsTerminal() {
					end = time.After(s.endDelay)
				}
			}

			c.Writer.Flush()
		case <-heartbeat.C:
			if _, ok := s.tasks.GetTask(id); !ok {
				logger.Debug("Task has been evicted, ending the stream")

				c.SSEvent(FrameEnd, &Frame{Type: FrameEnd})
				c.Writer.Flush()

				return
			}

			fmt.Fprint(c.Writer, ": heartbeat\n\n")

			c.Writer.Flush()
		case <-end:
			c.SSEvent(FrameEnd, &Frame{Type: FrameEnd})
			c.Writer.Flush()

			return
		}
	}
}
