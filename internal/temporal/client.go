package temporal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/protoforge/internal/observability"
)

// WorkflowIDPrefix prefixes the IDs of build workflows.
const WorkflowIDPrefix = "protoforge-build-"

// RunBuild starts BuildWorkflow on taskQueue and waits for its result.
func RunBuild(ctx context.Context, c client.Client, taskQueue string, input BuildInput) (*BuildOutput, error) {
	id := WorkflowIDPrefix + uuid.NewString()
	ctx, span := observability.StartRemoteBuildSpan(ctx, id, len(input.Tasks))
	defer span.End()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: taskQueue,
	}, BuildWorkflow, input)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("starting workflow: %w", err)
	}

	var out BuildOutput
	if err := run.Get(ctx, &out); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("workflow %s: %w", id, err)
	}
	return &out, nil
}
