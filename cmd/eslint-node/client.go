package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/eslint-node/internal/api"
	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/linter"
	"github.com/mattjoyce/eslint-node/internal/lock"
	"github.com/mattjoyce/eslint-node/internal/tui"
)

// EnvToken names the environment variable holding the daemon's bearer token.
const EnvToken = "ESLINT_NODE_TOKEN"

// connFlags locate the daemon. Unset values come from the lock file the
// daemon writes, then from the config.
type connFlags struct {
	addr       *string
	token      *string
	configPath *string
}

func addConnFlags(fs *flag.FlagSet) *connFlags {
	return &connFlags{
		addr:       fs.String("addr", "", "Daemon address (default: from the daemon's lock file)"),
		token:      fs.String("token", os.Getenv(EnvToken), "Bearer token (or "+EnvToken+" env var)"),
		configPath: fs.String("config", "", "Path to configuration file"),
	}
}

func (c *connFlags) client() (*api.Client, error) {
	addr, token := *c.addr, *c.token
	if addr == "" || token == "" {
		cfg, err := config.LoadOrDefault(*c.configPath)
		if err != nil {
			return nil, err
		}
		if addr == "" {
			addr = cfg.Daemon.Listen
			if owner, err := lock.ReadOwner(cfg.Daemon.LockPath); err == nil && owner.Addr != "" {
				addr = owner.Addr
			}
		}
		if token == "" {
			token = cfg.Daemon.Token
		}
	}
	return api.NewClient(addr, token), nil
}

// requestFlags describe the file a command runs against.
type requestFlags struct {
	project *string
	jsonOut *bool
}

func addRequestFlags(fs *flag.FlagSet) *requestFlags {
	return &requestFlags{
		project: fs.String("project", "", "Project root (default: nearest directory with package.json)"),
		jsonOut: fs.Bool("json", false, "Output in structured JSON format"),
	}
}

func (r *requestFlags) request(fs *flag.FlagSet, usage string) (linter.Request, error) {
	if fs.NArg() != 1 {
		return linter.Request{}, errors.New(usage)
	}
	filePath, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return linter.Request{}, err
	}
	project := *r.project
	if project == "" {
		project = findProjectRoot(filepath.Dir(filePath))
	} else if project, err = filepath.Abs(project); err != nil {
		return linter.Request{}, err
	}
	return linter.Request{FilePath: filePath, ProjectPath: project}, nil
}

// findProjectRoot returns the nearest directory at or above dir holding a
// package.json, or dir itself when there is none.
func findProjectRoot(dir string) string {
	for cur := dir; ; {
		if _, err := os.Stat(filepath.Join(cur, "package.json")); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir
		}
		cur = parent
	}
}

func printJSON(v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

func reportCommandError(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind != "" {
		fmt.Fprintf(os.Stderr, "Error (%s): %s\n", apiErr.Kind, apiErr.Message)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func runLint(args []string) int {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	conn := addConnFlags(fs)
	reqFlags := addRequestFlags(fs)
	stdin := fs.Bool("stdin", false, "Read the buffer from standard input")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	req, err := reqFlags.request(fs, "Usage: eslint-node lint <file> [--project DIR] [--stdin] [--json]")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *stdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stdin: %v\n", err)
			return 1
		}
		text := string(data)
		req.Contents = &text
		req.IsModified = true
	}

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}
	report, err := client.Lint(context.Background(), req)
	if err != nil {
		return reportCommandError(err)
	}

	if *reqFlags.jsonOut {
		if code := printJSON(report); code != 0 {
			return code
		}
	} else {
		fmt.Print(tui.RenderLint(report, tui.NewDefaultTheme()))
	}
	for _, m := range report.Messages {
		if m.Severity == "error" {
			return 1
		}
	}
	return 0
}

func runFix(args []string) int {
	fs := flag.NewFlagSet("fix", flag.ContinueOnError)
	conn := addConnFlags(fs)
	reqFlags := addRequestFlags(fs)
	onSave := fs.Bool("on-save", false, "Treat the fix as triggered by saving (honours fix_on_save)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	req, err := reqFlags.request(fs, "Usage: eslint-node fix <file> [--project DIR] [--on-save] [--json]")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	req.OnSave = *onSave

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}
	report, err := client.Fix(context.Background(), req)
	if err != nil {
		return reportCommandError(err)
	}
	if *reqFlags.jsonOut {
		return printJSON(report)
	}
	fmt.Print(tui.RenderFix(report, tui.NewDefaultTheme()))
	return 0
}

func runDebug(args []string) int {
	fs := flag.NewFlagSet("debug", flag.ContinueOnError)
	conn := addConnFlags(fs)
	reqFlags := addRequestFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	req, err := reqFlags.request(fs, "Usage: eslint-node debug <file> [--project DIR] [--json]")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}
	report, err := client.Debug(context.Background(), req)
	if err != nil {
		return reportCommandError(err)
	}
	if *reqFlags.jsonOut {
		return printJSON(report)
	}
	fmt.Print(tui.RenderDebug(report, tui.NewDefaultTheme()))
	return 0
}

func runCacheClear(args []string) int {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	conn := addConnFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}
	if err := client.ClearCache(context.Background()); err != nil {
		return reportCommandError(err)
	}
	fmt.Println("Worker cache cleared")
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	conn := addConnFlags(fs)
	limit := fs.Int("limit", 20, "Number of entries to show")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be positive")
		return 1
	}

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}
	entries, err := client.History(context.Background(), *limit)
	if err != nil {
		return reportCommandError(err)
	}
	if *jsonOut {
		return printJSON(entries)
	}
	fmt.Print(tui.RenderHistory(entries, tui.NewDefaultTheme()))
	return 0
}

func runEvents(args []string) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	conn := addConnFlags(fs)
	types := fs.String("types", "", "Comma-separated event types or groups (job, worker, linter)")
	since := fs.Int64("since", 0, "Replay buffered events after this ID")
	jsonOut := fs.Bool("json", false, "Print each event as a JSON line")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = client.Stream(ctx, *since, events.ParseFilter(*types), func(ev events.Event) error {
		if *jsonOut {
			return enc.Encode(ev)
		}
		_, err := fmt.Printf("%6d %s %-22s %s\n", ev.ID, ev.At.Local().Format("15:04:05.000"), ev.Type, ev.Data)
		return err
	})
	if err != nil && ctx.Err() == nil {
		return reportCommandError(err)
	}
	return 0
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	conn := addConnFlags(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	client, err := conn.client()
	if err != nil {
		return reportCommandError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	p := tea.NewProgram(tui.NewMonitor(ctx, client), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
