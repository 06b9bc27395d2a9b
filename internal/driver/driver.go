// Package driver runs a protoforge build: locate the toolchain, plan one
// generation task per interface definition, then execute the tasks.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/efebarandurmaz/protoforge/internal/build"
	"github.com/efebarandurmaz/protoforge/internal/buildfile"
	"github.com/efebarandurmaz/protoforge/internal/config"
	"github.com/efebarandurmaz/protoforge/internal/metrics"
	"github.com/efebarandurmaz/protoforge/internal/plugins"
	"github.com/efebarandurmaz/protoforge/internal/protoc"
	"github.com/efebarandurmaz/protoforge/internal/toolchain"
)

// Executor runs planned tasks. *build.Executor runs them locally.
type Executor interface {
	Run(ctx context.Context, tasks []*build.Task) error
}

// Driver holds the configuration shared by the build phases.
type Driver struct {
	cfg    *config.Config
	logger *slog.Logger

	// PkgConfig overrides the pkg-config used by the probe.
	PkgConfig toolchain.PkgConfig
	// Runner overrides the process runner of the local executor.
	Runner build.Runner
}

// New returns a driver for cfg.
func New(cfg *config.Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{cfg: cfg, logger: logger}
}

// Plan is the outcome of the planning phase.
type Plan struct {
	Location *toolchain.Location
	// Cached reports that the location came from the probe cache.
	Cached bool
	Build  *build.Build
	// Tasks are ordered so producers run before consumers.
	Tasks []*build.Task
}

// Configure probes for the toolchain and, if caching is enabled, saves
// the result under the output tree of f. f may be nil.
func (d *Driver) Configure(ctx context.Context, f *buildfile.File) (*toolchain.Location, error) {
	pc := d.PkgConfig
	if pc == nil {
		pc = toolchain.ExecPkgConfig{Path: d.cfg.Toolchain.PkgConfig}
	}
	loc, err := toolchain.Locate(ctx, toolchain.Options{
		Package:   d.cfg.Toolchain.Package,
		Program:   d.cfg.Toolchain.Program,
		PkgConfig: pc,
		Logger:    d.logger,
	})
	if err != nil {
		return nil, err
	}
	loc.PkgConfig = d.cfg.Toolchain.PkgConfig
	if d.cfg.Toolchain.Cache {
		if err := toolchain.SaveCache(d.CacheDir(f), loc); err != nil {
			return nil, err
		}
	}
	return loc, nil
}

// CacheDir is where the toolchain location is cached for f. It follows the
// build file's output tree when it sets one.
func (d *Driver) CacheDir(f *buildfile.File) string {
	return filepath.Join(d.buildContext(f).OutDir, config.CacheDirName)
}

// Toolchain returns the cached location when caching is enabled and the
// cache was written for the configured package, program and pkg-config;
// otherwise it locates the toolchain again.
func (d *Driver) Toolchain(ctx context.Context, f *buildfile.File) (*toolchain.Location, bool, error) {
	if d.cfg.Toolchain.Cache {
		loc, err := toolchain.LoadCache(d.CacheDir(f))
		switch {
		case err != nil:
			if !errors.Is(err, fs.ErrNotExist) {
				d.logger.Warn("ignoring toolchain cache", "error", err)
			}
		case !d.matches(loc):
			d.logger.Info("toolchain settings changed, locating again")
		default:
			if _, serr := os.Stat(loc.Executable); serr == nil {
				d.logger.Debug("using cached toolchain", "executable", loc.Executable)
				return loc, true, nil
			}
			d.logger.Warn("cached toolchain is gone, probing again", "executable", loc.Executable)
		}
	}
	loc, err := d.Configure(ctx, f)
	return loc, false, err
}

func (d *Driver) matches(loc *toolchain.Location) bool {
	tc := d.cfg.Toolchain
	return loc.Package == orDefault(tc.Package, toolchain.DefaultPackage) &&
		loc.Program == orDefault(tc.Program, toolchain.DefaultProgram) &&
		loc.PkgConfig == tc.PkgConfig
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Plan locates the toolchain and creates the tasks of every target in f.
// No task is created when the toolchain cannot be located.
func (d *Driver) Plan(ctx context.Context, f *buildfile.File) (*Plan, error) {
	loc, cached, err := d.Toolchain(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}
	return d.PlanWith(loc, cached, f)
}

// PlanWith plans f against an already located toolchain.
func (d *Driver) PlanWith(loc *toolchain.Location, cached bool, f *buildfile.File) (*Plan, error) {
	rule, err := protoc.NewRule(loc, d.suffixes())
	if err != nil {
		return nil, err
	}
	reg := plugins.NewRegistry()
	if err := protoc.Register(reg, rule); err != nil {
		return nil, err
	}

	b := build.NewBuild(d.buildContext(f), reg)
	for _, t := range f.BuildTargets() {
		gen, err := b.AddTarget(t)
		if err != nil {
			return nil, fmt.Errorf("plan: %w", err)
		}
		d.logger.Debug("planned target", "target", t.Name, "tasks", len(gen.Tasks()), "compiled", len(gen.CompiledSources()))
	}

	tasks, err := build.Order(b.Tasks())
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return &Plan{Location: loc, Cached: cached, Build: b, Tasks: tasks}, nil
}

// LocalExecutor returns an executor running tasks on this machine.
func (d *Driver) LocalExecutor(keepGoing bool) *build.Executor {
	runner := d.Runner
	if runner == nil {
		runner = build.NewExecRunner(build.RunnerConfig{Timeout: d.cfg.Build.Timeout})
	}
	return build.NewExecutor(runner, build.ExecutorConfig{KeepGoing: keepGoing, Logger: d.logger})
}

// Build plans f and runs its tasks with exec. The returned metrics are
// filled in even when the build fails after planning.
func (d *Driver) Build(ctx context.Context, f *buildfile.File, exec Executor, mode string) (*metrics.BuildMetrics, error) {
	m := metrics.New(mode)
	plan, err := d.Plan(ctx, f)
	if err != nil {
		m.Finish(err)
		return m, err
	}
	m.Toolchain = metrics.ToolchainInfo{Executable: plan.Location.Executable, Cached: plan.Cached}
	m.CollectPlan(plan.Build)

	err = exec.Run(ctx, plan.Tasks)
	m.CollectTasks(plan.Tasks)
	m.Finish(err)
	if err != nil {
		return m, fmt.Errorf("build failed: %w", err)
	}
	d.logger.Info("build finished", "tasks", len(plan.Tasks), "duration", m.Duration)
	return m, nil
}

// Outputs returns the files the rule would generate for each source,
// without locating the toolchain.
func (d *Driver) Outputs(sources []string) ([][3]build.Node, error) {
	s := d.suffixes()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ctx := d.buildContext(nil)
	out := make([][3]build.Node, 0, len(sources))
	for _, src := range sources {
		n, err := ctx.Source(src)
		if err != nil {
			return nil, err
		}
		out = append(out, protoc.DeriveOutputs(ctx, n, s))
	}
	return out, nil
}
