package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultShell = "/bin/bash"

// Lines longer than this are delivered in chunks of this size.
const maxLineSize = 1 << 20

type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Line is a single non-blank line of the process output.
type Line struct {
	Stream Stream
	Text   string
}

// Command is a shell command line to be executed.
type Command struct {
	Name string
	Line string
	Dir  string
	Env  []string
}

func (c *Command) String() string {
	if len(c.Dir) > 0 {
		return fmt.Sprintf("cd %s && %s", c.Dir, c.Line)
	}

	return c.Line
}

// Runner executes external commands.
//
// Run calls onLine for every output line as soon as it is read. Calls
// of onLine are never concurrent and lines of the same stream keep
// their order. A non-zero exit code is not an error: the error is only
// returned if the process could not be started or waited for.
type Runner interface {
	Run(ctx context.Context, cmd *Command, onLine func(Line)) (int, error)
}

// ShellRunner runs command lines with "<shell> -c".
type ShellRunner struct {
	shell string
}

func NewShellRunner(shell string) *ShellRunner {
	if len(shell) == 0 {
		shell = DefaultShell
	}

	return &ShellRunner{shell: shell}
}

func (r *ShellRunner) Run(ctx context.Context, cmd *Command, onLine func(Line)) (int, error) {
	c := exec.CommandContext(ctx, r.shell, "-c", cmd.Line)

	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return -1, err
	}

	stderr, err := c.StderrPipe()
	if err != nil {
		return -1, err
	}

	if err := c.Start(); err != nil {
		return -1, err
	}

	logger := log.WithField("pid", c.Process.Pid)

	logger.Debugf("Started: %s", cmd)

	var mu sync.Mutex

	emit := func(l Line) {
		mu.Lock()
		defer mu.Unlock()

		if onLine != nil {
			onLine(l)
		}
	}

	// Both pipes must be drained before calling Wait
	group := new(errgroup.Group)

	group.Go(func() error { return scanLines(stdout, Stdout, emit) })
	group.Go(func() error { return scanLines(stderr, Stderr, emit) })

	readErr := group.Wait()

	waitErr := c.Wait()

	exitCode, ok := ExitCode(waitErr)
	if !ok {
		return -1, waitErr
	}

	logger.Debugf("Exited with code %d", exitCode)

	if readErr != nil {
		logger.Warnf("Output is incomplete: %s", readErr)
	}

	return exitCode, nil
}

func scanLines(r io.Reader, stream Stream, emit func(Line)) error {
	br := bufio.NewReaderSize(r, maxLineSize)

	for {
		chunk, _, err := br.ReadLine()

		if text := strings.TrimRight(string(chunk), "\r"); len(strings.TrimSpace(text)) > 0 {
			emit(Line{Stream: stream, Text: text})
		}

		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			// Keep the process from blocking on a full pipe
			io.Copy(io.Discard, r)

			return err
		}
	}
}

// ExitCode extracts the exit code from the error returned by exec.Cmd.Wait.
// A process killed by a signal gets 128 + signal number.
// The second value is false if err is not an exit error at all.
func ExitCode(err error) (int, bool) {
	if err == nil {
		return 0, true
	}

	var exitCode int

	if exiterr, ok := err.(*exec.ExitError); ok {
		status := exiterr.Sys().(syscall.WaitStatus)

		switch {
		case status.Exited():
			exitCode = status.ExitStatus()
		case status.Signaled():
			exitCode = 128 + int(status.Signal())
		}
	} else {
		return 1, false
	}

	return exitCode, true
}
