package build

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Task is one atomic build step: a single process invocation that turns
// Inputs into Outputs.
type Task struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Target string `json:"target"`

	Inputs  []Node `json:"inputs"`
	Outputs []Node `json:"outputs"`

	// Args is the full argument vector; Args[0] is the executable.
	Args []string `json:"args"`

	// ExtIn and ExtOut declare the file kinds the task consumes and
	// produces.
	ExtIn  []string `json:"ext_in,omitempty"`
	ExtOut []string `json:"ext_out,omitempty"`

	State    State         `json:"state"`
	ExitCode int           `json:"exit_code"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Input returns the task's primary input.
func (t *Task) Input() Node {
	if len(t.Inputs) == 0 {
		return Node{}
	}
	return t.Inputs[0]
}

// CommandLine renders Args for display. It is not meant to be fed to a shell.
func (t *Task) CommandLine() string {
	return strings.Join(t.Args, " ")
}

var (
	// ErrGenerationFailed matches every *GenerationFailedError.
	ErrGenerationFailed = errors.New("generation process failed")
	// ErrOutputConflict is returned when two tasks declare the same output.
	ErrOutputConflict = errors.New("output declared by more than one task")
)

// GenerationFailedError reports a task whose process exited non-zero or
// could not be started. Stderr holds the process's standard error exactly
// as captured.
type GenerationFailedError struct {
	Target      string
	Input       string
	ExitCode    int
	Stderr      string
	Diagnostics []Diagnostic
	Err         error
}

func (e *GenerationFailedError) Error() string {
	if e.Err != nil && e.Stderr == "" {
		return fmt.Sprintf("target %s: %s: %v", e.Target, e.Input, e.Err)
	}
	return fmt.Sprintf("target %s: %s: exit status %d\n%s", e.Target, e.Input, e.ExitCode, e.Stderr)
}

func (e *GenerationFailedError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}
