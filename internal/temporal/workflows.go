package temporal

import (
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DefaultActivityTimeout bounds one generation activity when the input
// sets no timeout.
const DefaultActivityTimeout = 10 * time.Minute

// BuildInput holds the workflow parameters.
type BuildInput struct {
	// Tasks are already ordered so producers come before consumers.
	Tasks     []TaskSpec
	KeepGoing bool
	Timeout   time.Duration
}

// TaskSpec is the serializable form of one generation task.
type TaskSpec struct {
	ID      string
	Target  string
	Input   string
	Outputs []string
	Args    []string
}

// GenerateResult is the outcome of one generation activity.
type GenerateResult struct {
	TaskID   string
	ExitCode int
	Stderr   string
	Duration time.Duration
	// Error is set when the process could not be run at all.
	Error string
}

// Failed reports whether the task did not succeed.
func (r GenerateResult) Failed() bool {
	return r.ExitCode != 0 || r.Error != ""
}

// BuildOutput holds the workflow result.
type BuildOutput struct {
	Results []GenerateResult
	Failed  int
}

// BuildWorkflow runs one Generate activity per task, in order. A failed
// task is not retried; the workflow stops at the first failure unless
// KeepGoing is set.
func BuildWorkflow(ctx workflow.Context, input BuildInput) (*BuildOutput, error) {
	timeout := input.Timeout
	if timeout <= 0 {
		timeout = DefaultActivityTimeout
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         &sdktemporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	var a *Activities
	out := &BuildOutput{}
	for _, spec := range input.Tasks {
		var res GenerateResult
		if err := workflow.ExecuteActivity(ctx, a.Generate, spec).Get(ctx, &res); err != nil {
			// Timeouts and worker loss surface here, not as results.
			res = GenerateResult{TaskID: spec.ID, ExitCode: -1, Error: err.Error()}
		}
		out.Results = append(out.Results, res)

		if res.Failed() {
			out.Failed++
			logger.Error("generation failed", "target", spec.Target, "input", spec.Input, "exit_code", res.ExitCode)
			if !input.KeepGoing {
				break
			}
		}
	}
	return out, nil
}
