package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/efebarandurmaz/protoforge/internal/buildfile"
	"github.com/efebarandurmaz/protoforge/internal/config"
	"github.com/efebarandurmaz/protoforge/internal/driver"
	"github.com/efebarandurmaz/protoforge/internal/graph"
	graphneo4j "github.com/efebarandurmaz/protoforge/internal/graph/neo4j"
	"github.com/efebarandurmaz/protoforge/internal/observability"
	"github.com/efebarandurmaz/protoforge/internal/temporal"
	"github.com/efebarandurmaz/protoforge/internal/toolchain"
)

const version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "protoforge",
		Short:         "Generate protocol buffer bindings for build targets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default .protoforge.yaml)")

	var configureFile string
	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Locate the protobuf toolchain and cache the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd.Context(), configPath, configureFile)
		},
	}
	configureCmd.Flags().StringVarP(&configureFile, "file", "f", "", "Build file whose out dir holds the cache (default from config, if present)")

	var initFile string
	var initForce bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter build file listing the .proto files under the source root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(configPath, initFile, initForce)
		},
	}
	initCmd.Flags().StringVarP(&initFile, "file", "f", "", "Build file to write (default from config)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing build file")

	var opts buildOptions
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Generate bindings for every target in the build file",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.keepGoingSet = cmd.Flags().Changed("keep-going")
			return runBuild(cmd.Context(), configPath, opts)
		},
	}
	buildCmd.Flags().StringVarP(&opts.file, "file", "f", "", "Build file (default from config)")
	buildCmd.Flags().BoolVar(&opts.remote, "remote", false, "Run generation on Temporal workers")
	buildCmd.Flags().BoolVarP(&opts.keepGoing, "keep-going", "k", false, "Keep running tasks after a failure")
	buildCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the planned commands without running them")
	buildCmd.Flags().BoolVar(&opts.json, "json", false, "Output the build report as JSON")

	outputsCmd := &cobra.Command{
		Use:   "outputs <file.proto>...",
		Short: "Print the files generated for each interface definition",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutputs(configPath, args)
		},
	}

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the planned build graph",
	}

	var graphFile, graphFormat string
	graphExportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the build graph as dot, mermaid or json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphExport(cmd.Context(), configPath, graphFile, graphFormat)
		},
	}
	graphExportCmd.Flags().StringVarP(&graphFile, "file", "f", "", "Build file (default from config)")
	graphExportCmd.Flags().StringVar(&graphFormat, "format", "dot", "Output format: dot, mermaid, json")

	graphPushCmd := &cobra.Command{
		Use:   "push",
		Short: "Store the build graph in Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphPush(cmd.Context(), configPath, graphFile)
		},
	}
	graphPushCmd.Flags().StringVarP(&graphFile, "file", "f", "", "Build file (default from config)")

	graphProducersCmd := &cobra.Command{
		Use:   "producers <path>",
		Short: "Query Neo4j for the tasks generating a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphProducers(cmd.Context(), configPath, args[0])
		},
	}

	var showFormat string
	graphShowCmd := &cobra.Command{
		Use:   "show <target>",
		Short: "Load a stored target graph from Neo4j and export it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphShow(cmd.Context(), configPath, args[0], showFormat)
		},
	}
	graphShowCmd.Flags().StringVar(&showFormat, "format", "dot", "Output format: dot, mermaid, json")

	graphCmd.AddCommand(graphExportCmd, graphPushCmd, graphProducersCmd, graphShowCmd)
	rootCmd.AddCommand(initCmd, configureCmd, buildCmd, outputsCmd, graphCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type buildOptions struct {
	file         string
	remote       bool
	keepGoing    bool
	keepGoingSet bool
	dryRun       bool
	json         bool
}

func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	tcfg := observability.DefaultTracingConfig()
	tcfg.ServiceVersion = version
	tcfg.OTLPEndpoint = cfg.Tracing.Endpoint
	tcfg.SampleRate = cfg.Tracing.SampleRate
	tp, err := observability.InitTracing(ctx, tcfg)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}
}

func loadBuildFile(cfg *config.Config, path string) (*buildfile.File, error) {
	if path == "" {
		path = cfg.Build.File
	}
	f, err := buildfile.Load(path)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// optionalBuildFile loads the build file configure caches for. Without an
// explicit path the configured build file is optional.
func optionalBuildFile(cfg *config.Config, path string) (*buildfile.File, error) {
	if path != "" {
		return loadBuildFile(cfg, path)
	}
	if _, err := os.Stat(cfg.Build.File); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return loadBuildFile(cfg, "")
}

func runConfigure(ctx context.Context, configPath, file string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer initTracing(ctx, cfg, logger)()

	f, err := optionalBuildFile(cfg, file)
	if err != nil {
		return err
	}
	d := driver.New(cfg, logger)
	loc, err := d.Configure(ctx, f)
	if err != nil {
		if errors.Is(err, toolchain.ErrToolchainNotFound) {
			fmt.Fprintf(os.Stderr, "Is the %s development package installed and visible to pkg-config?\n", cfg.Toolchain.Package)
		}
		return err
	}

	fmt.Printf("Package:      %s\n", loc.Package)
	fmt.Printf("Exec prefix:  %s\n", loc.ExecPrefix)
	fmt.Printf("Executable:   %s\n", loc.Executable)
	for _, inc := range loc.IncludePaths {
		fmt.Printf("Include path: %s\n", inc)
	}
	if cfg.Toolchain.Cache {
		fmt.Printf("Cached in %s\n", d.CacheDir(f))
	}
	return nil
}

func runBuild(ctx context.Context, configPath string, opts buildOptions) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	defer initTracing(ctx, cfg, logger)()

	f, err := loadBuildFile(cfg, opts.file)
	if err != nil {
		return err
	}
	keepGoing := cfg.Build.KeepGoing
	if opts.keepGoingSet {
		keepGoing = opts.keepGoing
	}

	d := driver.New(cfg, logger)

	if opts.dryRun {
		plan, err := d.Plan(ctx, f)
		if err != nil {
			return err
		}
		for _, t := range plan.Tasks {
			fmt.Printf("[%s] %s\n", t.Target, t.CommandLine())
		}
		return nil
	}

	mode := "local"
	var exec driver.Executor = d.LocalExecutor(keepGoing)
	if opts.remote {
		c, err := temporalclient.Dial(temporalclient.Options{
			HostPort:  cfg.Temporal.Host,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(logger),
		})
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
		defer c.Close()
		mode = "remote"
		exec = &temporal.RemoteExecutor{
			Client:    c,
			TaskQueue: cfg.Temporal.TaskQueue,
			KeepGoing: keepGoing,
			Timeout:   cfg.Build.Timeout,
		}
	}

	m, buildErr := d.Build(ctx, f, exec, mode)
	if opts.json {
		data, err := m.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		m.PrintSummary(os.Stdout)
	}
	return buildErr
}

func runOutputs(configPath string, sources []string) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	outs, err := driver.New(cfg, logger).Outputs(sources)
	if err != nil {
		return err
	}
	for i, src := range sources {
		fmt.Printf("%s:\n", src)
		for _, n := range outs[i] {
			fmt.Printf("  %s\n", n.Path())
		}
	}
	return nil
}

func planGraph(ctx context.Context, configPath, file string) (*graph.Graph, *config.Config, error) {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := loadBuildFile(cfg, file)
	if err != nil {
		return nil, nil, err
	}
	plan, err := driver.New(cfg, logger).Plan(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return graph.FromBuild(plan.Build), cfg, nil
}

func runInit(configPath, file string, force bool) error {
	cfg, logger, err := setup(configPath)
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.Build.File
	}
	f, err := buildfile.Scaffold(cfg.Build.SrcRoot, cfg.Build.OutDir)
	if err != nil {
		return err
	}
	if err := buildfile.Write(file, f, force); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to replace it)", file)
		}
		return err
	}
	logger.Info("wrote build file", "path", file, "targets", len(f.Targets))
	return nil
}

func runGraphExport(ctx context.Context, configPath, file, format string) error {
	g, _, err := planGraph(ctx, configPath, file)
	if err != nil {
		return err
	}
	return writeGraph(g, format)
}

func writeGraph(g *graph.Graph, format string) error {
	switch format {
	case "dot":
		fmt.Print(graph.ExportDOT(g))
	case "mermaid":
		fmt.Print(graph.ExportMermaid(g))
	case "json":
		data, err := graph.ExportJSON(g)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown format %q (want dot, mermaid or json)", format)
	}
	fmt.Fprint(os.Stderr, graph.FormatStats(g))
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (graph.Repository, error) {
	if cfg.Graph.URI == "" {
		return nil, errors.New("graph.uri is not configured")
	}
	repo, err := graphneo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func runGraphPush(ctx context.Context, configPath, file string) error {
	g, cfg, err := planGraph(ctx, configPath, file)
	if err != nil {
		return err
	}
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	if err := repo.StoreGraph(ctx, g); err != nil {
		return err
	}
	fmt.Printf("Stored %d nodes and %d edges in %s\n", len(g.Nodes), len(g.Edges), cfg.Graph.URI)
	return nil
}

func runGraphShow(ctx context.Context, configPath, target, format string) error {
	cfg, _, err := setup(configPath)
	if err != nil {
		return err
	}
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	g, err := repo.LoadGraph(ctx, target)
	if err != nil {
		return err
	}
	return writeGraph(g, format)
}

func runGraphProducers(ctx context.Context, configPath, path string) error {
	cfg, _, err := setup(configPath)
	if err != nil {
		return err
	}
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	tasks, err := repo.QueryProducers(ctx, path)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("no task generates %s", path)
	}
	for _, t := range tasks {
		fmt.Println(t)
	}
	return nil
}
