package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/eslint-node/internal/api"
	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/jobmanager"
	"github.com/mattjoyce/eslint-node/internal/journal"
	"github.com/mattjoyce/eslint-node/internal/linter"
	"github.com/mattjoyce/eslint-node/internal/lock"
	"github.com/mattjoyce/eslint-node/internal/log"
	"github.com/mattjoyce/eslint-node/internal/metrics"
	"github.com/mattjoyce/eslint-node/internal/nodebin"
	"github.com/mattjoyce/eslint-node/internal/watch"
)

func runDaemonStart(args []string) int {
	var projects stringList
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Var(&projects, "project", "Project directory to watch (repeatable)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("eslint-node starting", "version", version, "config", cfg.SourcePath)

	instanceID := uuid.NewString()
	pidLock, err := lock.AcquirePIDLock(cfg.Daemon.LockPath, lock.Owner{
		Addr:       cfg.Daemon.Listen,
		InstanceID: instanceID,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		logger.Error("failed to acquire PID lock (another daemon may be running)", "path", cfg.Daemon.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path(), "instance_id", instanceID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := events.NewHub(256)
	collector := metrics.NewCollector()
	validator := nodebin.New(nodebin.WithTimeout(cfg.Worker.ValidateTimeout))

	command, err := workerCommand(cfg)
	if err != nil {
		logger.Error("failed to determine worker command", "error", err)
		return 1
	}
	jobs := jobmanager.New(jobmanager.Options{
		NodeBin:        cfg.Lint.NodeBin,
		Validator:      validator,
		Spawner:        jobmanager.ExecSpawner{Command: command},
		JobTimeout:     cfg.Worker.JobTimeout,
		StartupTimeout: cfg.Worker.StartupTimeout,
		Hub:            hub,
		Metrics:        collector,
	})
	defer jobs.Close()
	go drainWorkerErrors(ctx, jobs, log.WithComponent("worker"))

	svcOpts := linter.Options{
		Jobs:      jobs,
		Validator: validator,
		Base:      cfg.Lint,
		Hub:       hub,
		Version:   version,
	}
	var history api.History
	if cfg.Journal.Enabled {
		store, err := openJournal(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			return 1
		}
		defer store.Close()
		svcOpts.Recorder = store
		history = store
	}
	svc := linter.New(svcOpts)

	errCh := make(chan error, 2)

	if len(projects) > 0 {
		watcher, err := watch.New(svc, 0)
		if err != nil {
			logger.Error("failed to start file watcher", "error", err)
			return 1
		}
		for _, p := range projects {
			if err := watcher.AddProject(p); err != nil {
				logger.Error("failed to watch project", "project", p, "error", err)
				return 1
			}
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("watcher: %w", err)
			}
		}()
		logger.Info("watching projects", "count", len(watcher.Projects()))
	}

	server := api.New(api.Config{
		Listen:     cfg.Daemon.Listen,
		Token:      cfg.Daemon.Token,
		InstanceID: instanceID,
	}, api.Deps{
		Linter:  svc,
		Worker:  jobs,
		History: history,
		Events:  hub,
		Metrics: collector.Handler(),
	}, log.WithComponent("api"))
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()
	logger.Info("API server enabled", "listen", cfg.Daemon.Listen, "auth", cfg.Daemon.Token != "")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	logger.Info("eslint-node running (press Ctrl+C to stop)")

	reloader := &optionsReloader{path: cfg.SourcePath, svc: svc, logger: logger}
	reloader.prime()
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reloader.reload(ctx)
				continue
			}
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
			logger.Info("eslint-node stopped")
			return 0
		case err := <-errCh:
			logger.Error("component failed", "error", err)
			cancel()
			return 1
		}
	}
}

// workerCommand is the configured worker argv, or this executable's worker
// subcommand carrying the engine settings.
func workerCommand(cfg *config.Config) ([]string, error) {
	if len(cfg.Worker.Command) > 0 {
		return cfg.Worker.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	argv := []string{exe, "worker", "--log-level", cfg.Service.LogLevel}
	if cfg.Engine.BuiltinPath != "" {
		argv = append(argv, "--builtin", cfg.Engine.BuiltinPath)
	}
	if cfg.Engine.MaxFixPasses > 0 {
		argv = append(argv, "--max-fix-passes", strconv.Itoa(cfg.Engine.MaxFixPasses))
	}
	return argv, nil
}

func openJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*journal.Store, error) {
	store, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("journal opened", "path", cfg.Journal.Path)
	if cfg.Journal.Retention > 0 {
		n, err := store.Prune(ctx, cfg.Journal.Retention)
		if err != nil {
			logger.Warn("journal prune failed", "error", err)
		} else if n > 0 {
			logger.Info("journal pruned", "removed", n, "retention", cfg.Journal.Retention)
		}
	}
	return store, nil
}

func drainWorkerErrors(ctx context.Context, jobs *jobmanager.Manager, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-jobs.Errors():
			logger.Warn("worker error outside any job", "error", err)
		}
	}
}

// optionsReloader re-reads the config file on SIGHUP and hands the lint
// options to the service. Other sections need a restart.
type optionsReloader struct {
	path   string
	svc    *linter.Service
	logger *slog.Logger
	digest string
}

func (r *optionsReloader) prime() {
	if r.path == "" {
		return
	}
	if d, err := config.ComputeBlake3Hash(r.path); err == nil {
		r.digest = d
	}
}

func (r *optionsReloader) reload(ctx context.Context) {
	if r.path == "" {
		r.logger.Info("reload requested but daemon runs on defaults; nothing to reload")
		return
	}
	digest, err := config.ComputeBlake3Hash(r.path)
	if err != nil {
		r.logger.Warn("reload failed", "path", r.path, "error", err)
		return
	}
	if digest == r.digest {
		r.logger.Info("config unchanged", "path", r.path)
		return
	}
	cfg, err := config.Load(r.path)
	if err != nil {
		r.logger.Warn("reload failed, keeping current options", "path", r.path, "error", err)
		return
	}
	r.digest = digest
	r.svc.UpdateOptions(ctx, cfg.Lint)
	r.logger.Info("lint options reloaded", "path", r.path)
}

func runDaemonStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	conn := addConnFlags(fs)
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client, err := conn.client()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	health, err := client.Health(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Daemon not reachable at %s: %v\n", client.BaseURL, err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(health, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	fmt.Printf("daemon:   %s (%s)\n", client.BaseURL, health.Status)
	if health.InstanceID != "" {
		fmt.Printf("instance: %s\n", health.InstanceID)
	}
	fmt.Printf("uptime:   %s\n", (time.Duration(health.UptimeSeconds) * time.Second).String())
	worker := health.WorkerState
	if health.WorkerPid > 0 {
		worker = fmt.Sprintf("%s (pid %d)", worker, health.WorkerPid)
	}
	fmt.Printf("worker:   %s\n", worker)
	fmt.Printf("pending:  %d\n", health.PendingJobs)
	if health.Inactive {
		fmt.Println("linting is asleep; the next fix or config change wakes it")
	}
	return 0
}
