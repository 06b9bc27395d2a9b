package main

import (
	"context"
	"log"
	"os"

	temporalclient "go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/efebarandurmaz/protoforge/internal/build"
	"github.com/efebarandurmaz/protoforge/internal/config"
	"github.com/efebarandurmaz/protoforge/internal/driver"
	"github.com/efebarandurmaz/protoforge/internal/observability"
	"github.com/efebarandurmaz/protoforge/internal/server"
	temporalmod "github.com/efebarandurmaz/protoforge/internal/temporal"
)

const version = "0.1.0"

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	tcfg := observability.DefaultTracingConfig()
	tcfg.ServiceName = "protoforge-worker"
	tcfg.ServiceVersion = version
	tcfg.OTLPEndpoint = cfg.Tracing.Endpoint
	tcfg.SampleRate = cfg.Tracing.SampleRate
	tp, err := observability.InitTracing(ctx, tcfg)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	// Tasks arrive with the client's generator path; the worker runs its
	// own instead.
	loc, _, err := driver.New(cfg, logger).Toolchain(ctx, nil)
	if err != nil {
		log.Fatalf("toolchain: %v", err)
	}

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	metrics := observability.NewWorkerMetrics()
	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, &temporalmod.Activities{
		Runner:     build.NewExecRunner(build.RunnerConfig{Timeout: cfg.Build.Timeout}),
		Logger:     logger,
		Metrics:    metrics,
		Executable: loc.Executable,
	})
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	srv := server.NewGracefulServer(version, server.ShutdownConfig{Logger: logger})
	srv.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	srv.Health.RegisterCheck("toolchain", server.ToolchainHealthChecker(loc.Executable))
	srv.Health.Handle("/metrics", metrics.Handler())
	srv.RegisterHook(server.TemporalWorkerShutdownHook(w.Stop))
	srv.RegisterHook(server.TracingShutdownHook(tp.Shutdown))

	srv.Start(cfg.Worker.HealthAddr)
	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "health", cfg.Worker.HealthAddr, "protoc", loc.Executable)

	srv.Wait()
	logger.Info("worker stopped")
}
