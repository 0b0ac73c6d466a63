package httpserver

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/wtcops/resyncd/internal/executor"
	"github.com/wtcops/resyncd/internal/task"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResponse{
		Success:   true,
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

func (s *Server) index(c *gin.Context) {
	type endpoint struct {
		Description string      `json:"description"`
		Body        interface{} `json:"body,omitempty"`
	}

	endpoints := gin.H{
		"POST /api/tasks/check-integrity": endpoint{"Check resource integrity", gin.H{"version": "v885"}},
		"POST /api/tasks/sync-facebook":   endpoint{"Sync Facebook resources", gin.H{"version": "v885"}},
		"POST /api/tasks/sync-native":     endpoint{"Sync Native resources", gin.H{"version": "v885"}},
		"POST /api/tasks/update-reuse":    endpoint{"Move versions to reuse", gin.H{"version": "v885", "nginxReuseVersion": "v883 (optional)"}},
		"POST /api/tasks/full-sync":       endpoint{"Integrity check and both syncs", gin.H{"version": "v885", "skipCheck": false}},
		"GET /api/tasks/:id/stream":       endpoint{Description: "Live task output (server-sent events)"},
		"GET /api/tasks/:id/status":       endpoint{Description: "Task state"},
		"GET /api/tasks":                  endpoint{Description: "All retained tasks"},
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Resource Sync API",
		"endpoints": endpoints,
	})
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, &ListResponse{
		Success: true,
		Tasks:   s.tasks.ListTasks(),
	})
}

func (s *Server) taskStatus(c *gin.Context) {
	rec, ok := s.tasks.GetTask(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse("Task not found"))

		return
	}

	c.JSON(http.StatusOK, &StatusResponse{
		Success: true,
		Task:    rec,
	})
}

func (s *Server) submitTask(c *gin.Context) {
	kind := task.Kind(c.Param("kind"))

	if !kind.IsValid() {
		c.JSON(http.StatusNotFound, errorResponse("Endpoint not found"))

		return
	}

	params := make(task.Params)

	if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request payload"))

		return
	}

	id, err := s.exec.Submit(kind, params)

	switch {
	case err == nil:
	case executor.IsValidationError(err):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))

		return
	case errors.Is(err, executor.ErrExecutorClosed):
		c.JSON(http.StatusServiceUnavailable, errorResponse("Server is shutting down"))

		return
	default:
		log.WithField("task-type", kind).Errorf("Unable to submit task: %s", err)

		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))

		return
	}

	c.JSON(http.StatusOK, &SubmitResponse{
		Success:   true,
		TaskID:    id,
		Message:   "Task created successfully",
		StreamURL: StreamPath(id),
		StatusURL: StatusPath(id),
	})
}
