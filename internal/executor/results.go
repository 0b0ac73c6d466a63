package executor

import (
	"github.com/wtcops/resyncd/internal/task"
)

// CommandResult is the outcome of a single external command.
type CommandResult struct {
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Error    string `json:"error,omitempty"`
}

// Report is the result of a standalone task. Success is the aggregate
// of all executed commands.
type Report struct {
	Success bool             `json:"success"`
	Results []*CommandResult `json:"results"`

	// Set by update-reuse only
	NginxReuseVersion string `json:"nginxReuseVersion,omitempty"`
}

type StageReport struct {
	Step task.Kind `json:"step"`

	*Report
}

// PipelineReport is the result of a successful full-sync task.
type PipelineReport struct {
	Results []*StageReport `json:"results"`
}
