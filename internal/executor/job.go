package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wtcops/resyncd/internal/runner"
	"github.com/wtcops/resyncd/internal/task"

	log "github.com/sirupsen/logrus"
)

// job holds the per-task state of a single execution.
type job struct {
	*Executor

	ctx    context.Context
	id     string
	logger *log.Entry
}

func (j *job) addLog(level task.Level, msg string) {
	if err := j.tasks.AddLog(j.id, level, msg); err != nil && !errors.Is(err, task.ErrTaskNotFound) {
		j.logger.Warnf("Unable to append log entry: %s", err)
	}
}

func (j *job) setProgress(p int) {
	if err := j.tasks.UpdateProgress(j.id, p); err != nil && !errors.Is(err, task.ErrTaskNotFound) {
		j.logger.Warnf("Unable to update progress: %s", err)
	}
}

// runCommand executes the command and forwards every output line
// to the task log as it arrives.
func (j *job) runCommand(cmd *runner.Command) *CommandResult {
	j.addLog(task.LevelInfo, "Executing: "+cmd.String())

	var stdout, stderr strings.Builder

	code, err := j.runner.Run(j.ctx, cmd, func(l runner.Line) {
		switch l.Stream {
		case runner.Stderr:
			stderr.WriteString(l.Text + "\n")
			j.addLog(task.LevelStderr, l.Text)
		default:
			stdout.WriteString(l.Text + "\n")
			j.addLog(task.LevelStdout, l.Text)
		}

		j.logger.Debugf("[%s] %s", l.Stream, l.Text)
	})

	res := CommandResult{
		Name:     cmd.Name,
		ExitCode: code,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
	}

	switch {
	case err != nil:
		res.Error = err.Error()
		if len(res.Stderr) == 0 {
			res.Stderr = res.Error
		}

		j.addLog(task.LevelError, "Execution error: "+err.Error())
		j.logger.Errorf("%s: execution error: %s", cmd.Name, err)
	case code == 0:
		res.Success = true

		j.addLog(task.LevelSuccess, fmt.Sprintf("Process exited with code %d", code))
		j.logger.Infof("%s: success", cmd.Name)
	default:
		j.addLog(task.LevelError, fmt.Sprintf("Process exited with code %d", code))
		j.logger.Errorf("%s: failed with exit code %d", cmd.Name, code)
	}

	j.metrics.CommandExecuted(j.ctx, res.Success)

	return &res
}

// runSequence executes the commands in order. With stopOnError, the first
// failure ends the sequence, otherwise all commands are executed anyway.
// With withProgress, the progress is set to the share of steps
// reached, the current one included, before each step.
func (j *job) runSequence(cmds []*runner.Command, stopOnError, withProgress bool) *Report {
	rep := Report{
		Success: true,
		Results: make([]*CommandResult, 0, len(cmds)),
	}

	for i, cmd := range cmds {
		if withProgress {
			j.setProgress(int(math.Round(float64(i+1) / float64(len(cmds)) * 100)))
			j.addLog(task.LevelInfo, fmt.Sprintf("Step %d/%d: %s", i+1, len(cmds), cmd.Name))
		}

		res := j.runCommand(cmd)

		rep.Results = append(rep.Results, res)

		if !res.Success {
			rep.Success = false

			if stopOnError {
				j.addLog(task.LevelError, fmt.Sprintf("Stopped after failed step: %s", cmd.Name))

				break
			}
		}
	}

	return &rep
}

func (j *job) checkIntegrity(ver string, withProgress bool) *Report {
	return j.runSequence(j.integrityCommands(ver), false, withProgress)
}

func (j *job) syncFacebook(ver string) *Report {
	return j.runSequence([]*runner.Command{j.syncFacebookCommand(ver)}, true, false)
}

func (j *job) syncNative(ver string) *Report {
	return j.runSequence([]*runner.Command{j.syncNativeCommand(ver)}, true, false)
}

func (j *job) updateReuse(ver, nginxVer string) *Report {
	j.addLog(task.LevelInfo, fmt.Sprintf("Reuse versions: %s (home), %s (nginx)", ver, nginxVer))

	rep := j.runSequence(j.reuseCommands(ver, nginxVer), true, true)

	rep.NginxReuseVersion = nginxVer

	return rep
}

// fullSync runs the whole pipeline: integrity check (unless skipped),
// Facebook sync, Native sync. Any failed stage fails the task.
func (j *job) fullSync(ver string, skipCheck bool) (*PipelineReport, error) {
	stages := make([]*StageReport, 0, 3)

	if skipCheck {
		j.logger.Info("Integrity check skipped")
	} else {
		j.setProgress(10)
		j.addLog(task.LevelInfo, "Step 1/3: Checking resource integrity")

		rep := j.checkIntegrity(ver, false)

		stages = append(stages, &StageReport{Step: task.KindCheckIntegrity, Report: rep})

		if !rep.Success {
			return nil, ErrIntegrityCheckFailed
		}
	}

	j.setProgress(40)
	j.addLog(task.LevelInfo, "Step 2/3: Syncing Facebook resources")

	if rep := j.syncFacebook(ver); rep.Success {
		stages = append(stages, &StageReport{Step: task.KindSyncFacebook, Report: rep})
	} else {
		return nil, ErrFacebookSyncFailed
	}

	j.setProgress(70)
	j.addLog(task.LevelInfo, "Step 3/3: Syncing Native resources")

	if rep := j.syncNative(ver); rep.Success {
		stages = append(stages, &StageReport{Step: task.KindSyncNative, Report: rep})
	} else {
		return nil, ErrNativeSyncFailed
	}

	j.addLog(task.LevelSuccess, "Full sync completed")

	return &PipelineReport{Results: stages}, nil
}
