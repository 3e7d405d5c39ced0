// Package shell runs resolved command strings in a folder's working
// directory and mediates scoped access to that directory.
package shell

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/reex/reexd/internal/models"
)

const defaultKillGrace = 5 * time.Second

// Result is the outcome of one subprocess run. Launch failures are encoded
// in the result (exit code -1), never returned as an error.
type Result struct {
	Output   string
	ExitCode int32
}

type Executor struct {
	logger *slog.Logger

	// killGrace is how long a terminated process gets to exit before
	// escalation to SIGKILL.
	killGrace time.Duration
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{
		logger:    logger.With("component", "shell"),
		killGrace: defaultKillGrace,
	}
}

// Execute runs `shellPath -c command` in workingDir and blocks until the
// subprocess exits. Stdout and stderr are drained continuously so chatty
// commands cannot deadlock on a full pipe. When ctx is cancelled the
// subprocess is sent SIGTERM; if it is still alive after the grace period
// it is killed. The returned exit code is the real termination status; the
// caller decides whether a cancelled run counts as preempted.
func (e *Executor) Execute(ctx context.Context, shellPath, workingDir, command string) Result {
	cmd := exec.Command(shellPath, "-c", command)
	cmd.Dir = workingDir

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return launchFailure(err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return launchFailure(err)
	}

	if err := cmd.Start(); err != nil {
		return launchFailure(err)
	}

	var stdout, stderr bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		stdout.ReadFrom(stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		stderr.ReadFrom(stderrPipe)
	}()

	done := make(chan struct{})
	go e.terminateOnCancel(ctx, cmd.Process.Pid, done)

	wg.Wait()
	waitErr := cmd.Wait()
	close(done)

	exitCode := int32(0)
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = int32(exitErr.ExitCode())
		} else {
			return launchFailure(waitErr)
		}
	}

	return Result{
		Output:   combineOutput(stdout.String(), stderr.String()),
		ExitCode: exitCode,
	}
}

// terminateOnCancel waits for ctx cancellation, terminates the subprocess
// and escalates to SIGKILL if the pid is still alive after the grace
// period. Returns as soon as the run finishes.
func (e *Executor) terminateOnCancel(ctx context.Context, pid int, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	e.logger.Debug("terminating subprocess", "pid", pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return
	}

	select {
	case <-done:
		return
	case <-time.After(e.killGrace):
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil || !alive {
		return
	}

	e.logger.Warn("subprocess ignored SIGTERM, killing", "pid", pid)
	syscall.Kill(pid, syscall.SIGKILL)
}

func launchFailure(err error) Result {
	return Result{
		Output:   "Failed to execute command: " + err.Error(),
		ExitCode: models.ExitLaunchFailure,
	}
}

func combineOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	return stdout + "\n\nErrors:\n" + stderr
}
