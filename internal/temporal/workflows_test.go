package temporal

import (
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/efebarandurmaz/protoforge/internal/build"
)

func runWorkflow(t *testing.T, runner *scriptedRunner, input BuildInput) *BuildOutput {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(BuildWorkflow)
	env.RegisterActivity(&Activities{Runner: runner})

	env.ExecuteWorkflow(BuildWorkflow, input)
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out BuildOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	return &out
}

func TestBuildWorkflow_Success(t *testing.T) {
	out := t.TempDir()
	runner := &scriptedRunner{}
	res := runWorkflow(t, runner, BuildInput{Tasks: []TaskSpec{
		spec("1", "widgets/shape.proto", out),
		spec("2", "widgets/color.proto", out),
	}})

	if res.Failed != 0 || len(res.Results) != 2 {
		t.Errorf("unexpected output: %+v", res)
	}
	if len(runner.calls) != 2 || runner.calls[0] != "widgets/shape.proto" {
		t.Errorf("calls = %v", runner.calls)
	}
}

func TestBuildWorkflow_StopsAtFirstFailure(t *testing.T) {
	out := t.TempDir()
	runner := &scriptedRunner{results: map[string]*build.RunResult{
		"widgets/shape.proto": {ExitCode: 1, Stderr: []byte("shape.proto:4:1: Expected...")},
	}}
	res := runWorkflow(t, runner, BuildInput{Tasks: []TaskSpec{
		spec("1", "widgets/shape.proto", out),
		spec("2", "widgets/color.proto", out),
	}})

	if res.Failed != 1 || len(res.Results) != 1 {
		t.Fatalf("unexpected output: %+v", res)
	}
	if res.Results[0].Stderr != "shape.proto:4:1: Expected..." {
		t.Errorf("stderr not passed through: %q", res.Results[0].Stderr)
	}
	if len(runner.calls) != 1 {
		t.Errorf("failed task must not be retried, calls = %v", runner.calls)
	}
}

func TestBuildWorkflow_KeepGoing(t *testing.T) {
	out := t.TempDir()
	runner := &scriptedRunner{results: map[string]*build.RunResult{
		"widgets/shape.proto": {ExitCode: 1},
	}}
	res := runWorkflow(t, runner, BuildInput{KeepGoing: true, Tasks: []TaskSpec{
		spec("1", "widgets/shape.proto", out),
		spec("2", "widgets/color.proto", out),
	}})

	if res.Failed != 1 || len(res.Results) != 2 || res.Results[1].Failed() {
		t.Errorf("unexpected output: %+v", res)
	}
}
