// Package monitor owns remote task polling and execution coordination:
// one poll loop per folder, at most one in-flight execution per folder,
// exactly-once delivery per remote task id, and preemption of stale runs.
package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/reex/reexd/internal/events"
	"github.com/reex/reexd/internal/models"
	"github.com/reex/reexd/internal/shell"
)

const preemptedOutput = "Execution timed out (new task arrived)"

// Engine runs one resolved command to completion or cancellation.
type Engine interface {
	Execute(ctx context.Context, shellPath, workingDir, command string) shell.Result
}

// RecordStore is the durable side of execution outcomes: the per-folder
// record log and the delivered-id dedup set.
type RecordStore interface {
	AppendRecord(folderID uuid.UUID, record models.ExecutionRecord) error
	ExecutedIDs(folderID uuid.UUID) (map[int]bool, error)
	AddExecutedID(folderID uuid.UUID, id int) error
}

// Notifier fans execution outcomes out to remote endpoints.
type Notifier interface {
	PostCallback(ctx context.Context, url, output string)
	UploadRecord(ctx context.Context, url string, record models.ExecutionRecord)
}

// pendingExecution is the in-flight slot: one per folder at most.
type pendingExecution struct {
	task     models.RemoteTask
	cmdName  string
	resolved string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Coordinator is the per-folder execution state machine. It is either idle
// or running exactly one remote-triggered execution; a newer task for the
// same folder preempts the running one. All state transitions happen under
// the mutex, so a manual trigger racing a scheduled tick cannot corrupt
// the in-flight slot or the dedup set.
type Coordinator struct {
	folderID uuid.UUID
	store    RecordStore
	engine   Engine
	notifier Notifier
	bus      *events.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	current *pendingExecution
}

func NewCoordinator(folderID uuid.UUID, store RecordStore, engine Engine, notifier Notifier, bus *events.Bus, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		folderID: folderID,
		store:    store,
		engine:   engine,
		notifier: notifier,
		bus:      bus,
		logger:   logger.With("component", "coordinator", "folder", folderID.String()),
	}
}

// HandleTask applies one fetched task against the current state. folder is
// a snapshot; the coordinator never touches UI-owned structures. ctx is
// the folder's long-lived polling context: cancelling it cancels any run
// started here.
func (c *Coordinator) HandleTask(ctx context.Context, folder models.Folder, task models.RemoteTask) {
	c.mu.Lock()

	executed, err := c.store.ExecutedIDs(c.folderID)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("load dedup set failed, skipping task", "task", task.ID, "error", err)
		return
	}
	if executed[task.ID] {
		c.mu.Unlock()
		return
	}

	if c.current != nil {
		if c.current.task.ID == task.ID {
			// Same task still running; nothing to do.
			c.mu.Unlock()
			return
		}
		c.preemptLocked(ctx, folder)
	}

	cmd, ok := folder.CommandByName(task.CommandName)
	if !ok {
		// Left out of the dedup set on purpose: the task can still be
		// delivered once the command is added.
		c.mu.Unlock()
		c.logger.Warn("no command matches remote task", "task", task.ID, "name", task.CommandName)
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	pending := &pendingExecution{
		task:     task,
		cmdName:  cmd.Name,
		resolved: cmd.Resolve(task.Arguments),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.current = pending
	c.mu.Unlock()

	c.logger.Info("starting remote execution", "task", task.ID, "command", pending.resolved)
	go c.run(runCtx, folder, pending)
}

// preemptLocked abandons the in-flight execution in favor of a newer task.
// Called with the mutex held. The kill signal is a request; the old
// process's death and the new launch may overlap briefly.
func (c *Coordinator) preemptLocked(ctx context.Context, folder models.Folder) {
	old := c.current
	c.current = nil
	old.cancel()

	c.logger.Info("preempting stale execution", "task", old.task.ID)

	record := models.NewRemoteExecutionRecord(old.cmdName, old.resolved, preemptedOutput, models.ExitPreempted, old.task.ID)
	c.recordLocked(record)

	go c.notify(ctx, folder, old.task.Callback, record)
}

// run executes one resolved command and records its outcome, unless the
// slot was taken away (preemption or shutdown) while it ran.
func (c *Coordinator) run(ctx context.Context, folder models.Folder, pending *pendingExecution) {
	defer close(pending.done)
	defer pending.cancel()

	result := c.execute(ctx, folder, pending.resolved)

	c.mu.Lock()
	if c.current != pending {
		// Preempted (its record is already written) or shut down
		// (silent). Either way this outcome is discarded.
		c.mu.Unlock()
		return
	}
	c.current = nil

	record := models.NewRemoteExecutionRecord(pending.cmdName, pending.resolved, result.Output, result.ExitCode, pending.task.ID)
	c.recordLocked(record)
	c.mu.Unlock()

	c.logger.Info("remote execution finished", "task", pending.task.ID, "exitCode", result.ExitCode)
	c.notify(ctx, folder, pending.task.Callback, record)
}

// execute wraps the engine call in a scoped working-directory grant.
// Acquisition failure is a launch failure, encoded in the result.
func (c *Coordinator) execute(ctx context.Context, folder models.Folder, command string) shell.Result {
	access, err := shell.Acquire(folder.Path, folder.AccessToken)
	if err != nil {
		return shell.Result{
			Output:   "Failed to execute command: " + err.Error(),
			ExitCode: models.ExitLaunchFailure,
		}
	}
	defer access.Release()

	return c.engine.Execute(ctx, folder.ShellPath, folder.Path, command)
}

// recordLocked appends the record and marks the task id delivered. Called
// with the mutex held so records land in completion order.
func (c *Coordinator) recordLocked(record models.ExecutionRecord) {
	if err := c.store.AppendRecord(c.folderID, record); err != nil {
		c.logger.Error("append record failed", "error", err)
	}
	if record.RemoteCommandID != nil {
		if err := c.store.AddExecutedID(c.folderID, *record.RemoteCommandID); err != nil {
			c.logger.Error("update dedup set failed", "error", err)
		}
	}
}

// notify fires the task callback, the folder upload hook and the UI event.
// All fire-and-forget.
func (c *Coordinator) notify(ctx context.Context, folder models.Folder, callback string, record models.ExecutionRecord) {
	if callback != "" {
		c.notifier.PostCallback(ctx, callback, record.Output)
	}
	if folder.UploadRecordURL != "" {
		c.notifier.UploadRecord(ctx, folder.UploadRecordURL, record)
	}
	c.bus.Publish(events.RecordsChanged, c.folderID)
}

// Busy reports whether an execution is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Shutdown cancels any in-flight execution without synthesizing a timeout
// record. The shutdown path is silent; only preemption writes one.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
}
