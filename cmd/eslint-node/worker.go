package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/eslint-node/internal/engine"
	"github.com/mattjoyce/eslint-node/internal/log"
	"github.com/mattjoyce/eslint-node/internal/protocol"
	"github.com/mattjoyce/eslint-node/internal/worker"
)

// runWorker serves jobs on stdin/stdout until stdin closes. Stdout belongs
// to the protocol, so logs travel as {log} lines on it.
func runWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	builtin := fs.String("builtin", "", "Root of the bundled ESLint package")
	maxPasses := fs.Int("max-fix-passes", 0, "Fix passes per job (0: engine default)")
	level := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	stdout := protocol.NewEncoder(os.Stdout)
	stderr := protocol.NewEncoder(os.Stderr)
	log.SetupHandler(worker.NewLogHandler(stdout, log.ParseLevel(*level)))
	logger := log.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	d := worker.NewDispatcher(
		engine.CLIFactory{MaxFixPasses: *maxPasses},
		engine.Resolver{BuiltinPath: *builtin},
	)
	logger.Debug("worker serving", "pid", os.Getpid(), "builtin", *builtin)
	if err := worker.ServeEncoders(ctx, d, os.Stdin, stdout, stderr); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		return 1
	}
	return 0
}
