// Package models defines the entities shared across the daemon: folders,
// command templates, remote tasks and execution records.
package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultShellPath is used for folders created without an explicit shell.
const DefaultShellPath = "/bin/bash"

// Folder combines a working directory, a shell and a set of command
// templates. Commands keep their insertion order; remote task matching is
// by name, first match wins.
type Folder struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	ShellPath string    `json:"shellPath"`
	Commands  []Command `json:"commands"`

	// AccessToken is an opaque capability for sandboxed access to Path.
	// Empty on platforms that do not require one.
	AccessToken []byte `json:"accessToken,omitempty"`

	RemoteTaskURL   string `json:"remoteTaskUrl,omitempty"`
	UploadRecordURL string `json:"uploadRecordUrl,omitempty"`
}

func NewFolder(name, path string) Folder {
	return Folder{
		ID:        uuid.New(),
		Name:      name,
		Path:      path,
		ShellPath: DefaultShellPath,
	}
}

// CommandByName returns the first command with the given name in declared
// order. Duplicate names are allowed; the first one wins.
func (f Folder) CommandByName(name string) (Command, bool) {
	for _, c := range f.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Command is a named shell template with {placeholder} parameters.
type Command struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Cmd  string    `json:"cmd"`
}

func NewCommand(name, cmd string) Command {
	return Command{ID: uuid.New(), Name: name, Cmd: cmd}
}

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Placeholders returns the placeholder names in first-occurrence order.
// Repeated placeholders appear once per occurrence; callers tolerate that.
func (c Command) Placeholders() []string {
	matches := placeholderPattern.FindAllStringSubmatch(c.Cmd, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Resolve substitutes every {key} occurrence with its value. Placeholders
// without a supplied value are left verbatim.
func (c Command) Resolve(values map[string]string) string {
	resolved := c.Cmd
	for key, value := range values {
		resolved = strings.ReplaceAll(resolved, "{"+key+"}", value)
	}
	return resolved
}

// RemoteTask is a pending task descriptor fetched from a folder's remote
// URL. Not persisted; consumed transiently each poll tick.
type RemoteTask struct {
	ID          int               `json:"id"`
	CommandName string            `json:"commandName"`
	Arguments   map[string]string `json:"arguments"`
	Callback    string            `json:"callback,omitempty"`
}

// RemoteTaskList is the envelope returned by the remote endpoint. Only the
// first list entry is live; the remote side owns sequencing.
type RemoteTaskList struct {
	List []RemoteTask `json:"list"`
}

// Synthetic exit codes. Real subprocess statuses are always >= 0.
const (
	// ExitLaunchFailure marks a run that never started (bad shell,
	// missing working directory, permission denied).
	ExitLaunchFailure int32 = -1
	// ExitPreempted marks a run abandoned because a newer remote task
	// arrived for the same folder.
	ExitPreempted int32 = -2
)

// ExecutionRecord is the immutable outcome of one completed or preempted
// execution. Records are stored newest first per folder.
type ExecutionRecord struct {
	ID          uuid.UUID `json:"id"`
	CommandName string    `json:"commandName"`
	Command     string    `json:"command"`
	Output      string    `json:"output"`
	Timestamp   time.Time `json:"timestamp"`
	ExitCode    int32     `json:"exitCode"`

	// RemoteCommandID is nil for interactively triggered executions.
	RemoteCommandID *int `json:"remoteCommandId,omitempty"`
	IsRemote        bool `json:"isRemote"`
}

func NewExecutionRecord(commandName, command, output string, exitCode int32) ExecutionRecord {
	return ExecutionRecord{
		ID:          uuid.New(),
		CommandName: commandName,
		Command:     command,
		Output:      output,
		Timestamp:   time.Now(),
		ExitCode:    exitCode,
	}
}

// NewRemoteExecutionRecord builds a record for a remote-triggered run.
func NewRemoteExecutionRecord(commandName, command, output string, exitCode int32, remoteID int) ExecutionRecord {
	r := NewExecutionRecord(commandName, command, output, exitCode)
	r.RemoteCommandID = &remoteID
	r.IsRemote = true
	return r
}
