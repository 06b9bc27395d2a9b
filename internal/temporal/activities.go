package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/efebarandurmaz/protoforge/internal/build"
	"github.com/efebarandurmaz/protoforge/internal/observability"
)

// Activities holds the resources shared by the worker's activities.
type Activities struct {
	Runner build.Runner
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *observability.WorkerMetrics
	// Executable, when set, replaces the generator path the client sent
	// so tasks run with the worker's own toolchain.
	Executable string
}

func (a *Activities) command(args []string) []string {
	if a.Executable == "" || len(args) == 0 {
		return args
	}
	return append([]string{a.Executable}, args[1:]...)
}

func (a *Activities) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Generate runs one generation task on the worker. Paths are resolved
// against the worker's working directory. A process that exits non-zero,
// or cannot be started, is reported in the result rather than as an
// activity error so that the workflow sees stderr exactly as written.
func (a *Activities) Generate(ctx context.Context, spec TaskSpec) (GenerateResult, error) {
	res := GenerateResult{TaskID: spec.ID}

	ctx, span := observability.StartGenerateSpan(ctx, spec.Target, spec.Input)
	defer span.End()

	for _, o := range spec.Outputs {
		if err := os.MkdirAll(filepath.Dir(o), 0o755); err != nil {
			res.ExitCode = -1
			res.Error = fmt.Sprintf("creating %s: %v", filepath.Dir(o), err)
			observability.RecordError(span, err)
			return res, nil
		}
	}

	a.logger().Info("generating", "target", spec.Target, "input", spec.Input, "task", spec.ID)
	if a.Metrics != nil {
		done := a.Metrics.Start()
		defer func() { done(res.Duration, res.Failed()) }()
	}
	run, err := a.Runner.Run(ctx, a.command(spec.Args))
	if run != nil {
		res.Stderr = string(run.Stderr)
		res.Duration = run.Duration
	}
	if err != nil {
		res.ExitCode = -1
		res.Error = err.Error()
		observability.RecordError(span, err)
		return res, nil
	}

	res.ExitCode = run.ExitCode
	observability.RecordGenerateResult(span, run.ExitCode, run.Duration)
	return res, nil
}

// SpecsFromTasks converts planned tasks for the workflow.
func SpecsFromTasks(tasks []*build.Task) []TaskSpec {
	specs := make([]TaskSpec, len(tasks))
	for i, t := range tasks {
		outs := make([]string, len(t.Outputs))
		for j, o := range t.Outputs {
			outs[j] = o.Path()
		}
		specs[i] = TaskSpec{
			ID:      t.ID,
			Target:  t.Target,
			Input:   t.Input().Path(),
			Outputs: outs,
			Args:    t.Args,
		}
	}
	return specs
}

// ApplyResults records the workflow's results on the tasks and returns
// a *build.GenerationFailedError for each failed one. Tasks without a
// result stay pending.
func ApplyResults(tasks []*build.Task, out *BuildOutput) []error {
	byID := make(map[string]GenerateResult, len(out.Results))
	for _, r := range out.Results {
		byID[r.TaskID] = r
	}

	var errs []error
	for _, t := range tasks {
		r, ok := byID[t.ID]
		if !ok {
			continue
		}
		t.ExitCode = r.ExitCode
		t.Stderr = r.Stderr
		t.Duration = r.Duration
		if !r.Failed() {
			t.State = build.StateSucceeded
			continue
		}
		t.State = build.StateFailed
		gerr := &build.GenerationFailedError{
			Target:      t.Target,
			Input:       t.Input().Path(),
			ExitCode:    r.ExitCode,
			Stderr:      r.Stderr,
			Diagnostics: build.ParseDiagnostics(r.Stderr),
		}
		if r.Error != "" {
			gerr.Err = fmt.Errorf("%s", r.Error)
		}
		errs = append(errs, gerr)
	}
	return errs
}
