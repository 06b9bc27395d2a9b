package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/protoforge/internal/build"
)

// RemoteExecutor runs planned tasks on Temporal workers through
// BuildWorkflow. Workers must see the same source tree at their working
// directory.
type RemoteExecutor struct {
	Client    client.Client
	TaskQueue string
	KeepGoing bool
	Timeout   time.Duration
}

// Run submits tasks as one workflow and records the results on them.
func (e *RemoteExecutor) Run(ctx context.Context, tasks []*build.Task) error {
	out, err := RunBuild(ctx, e.Client, e.TaskQueue, BuildInput{
		Tasks:     SpecsFromTasks(tasks),
		KeepGoing: e.KeepGoing,
		Timeout:   e.Timeout,
	})
	if err != nil {
		return err
	}
	return errors.Join(ApplyResults(tasks, out)...)
}
