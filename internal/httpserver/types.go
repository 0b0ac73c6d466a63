package httpserver

import (
	"time"

	"github.com/wtcops/resyncd/internal/task"
)

// Frame types of the task stream. Log and update frames carry
// task.Event as is.
const (
	FrameConnected = "connected"
	FrameLog       = string(task.EventLog)
	FrameUpdate    = string(task.EventUpdate)
	FrameEnd       = "end"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func errorResponse(msg string) *ErrorResponse {
	return &ErrorResponse{Error: msg}
}

type HealthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type SubmitRequest struct {
	Version           string `json:"version"`
	NginxReuseVersion string `json:"nginxReuseVersion,omitempty"`
	SkipCheck         *bool  `json:"skipCheck,omitempty"`
}

type SubmitResponse struct {
	Success   bool   `json:"success"`
	TaskID    string `json:"taskId"`
	Message   string `json:"message"`
	StreamURL string `json:"streamUrl"`
	StatusURL string `json:"statusUrl"`
}

type StatusResponse struct {
	Success bool         `json:"success"`
	Task    *task.Record `json:"task"`
}

type ListResponse struct {
	Success bool            `json:"success"`
	Tasks   []*task.Summary `json:"tasks"`
}

// Frame is a single stream message as seen by a client.
type Frame struct {
	Type string         `json:"type"`
	Task *task.Record   `json:"task,omitempty"`
	Log  *task.LogEntry `json:"log,omitempty"`
}

func StreamPath(id string) string {
	return "/api/tasks/" + id + "/stream"
}

func StatusPath(id string) string {
	return "/api/tasks/" + id + "/status"
}
