package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattjoyce/eslint-node/internal/protocol"
)

// noConfigMarkers are fragments of the engine's "no configuration" failure
// across major versions.
var noConfigMarkers = []string{
	"No ESLint configuration found",
	"couldn't find a configuration file",
	"Could not find config file",
}

// cliOutput is the json-with-metadata formatter's document.
type cliOutput struct {
	Results  []Result `json:"results"`
	Metadata struct {
		RulesMeta map[string]protocol.RuleMeta `json:"rulesMeta"`
	} `json:"metadata"`
}

// CLIFactory builds CLIEngines.
type CLIFactory struct {
	// MaxFixPasses overrides MaxFixPasses when positive.
	MaxFixPasses int
}

// New returns a CLIEngine for inst.
func (f CLIFactory) New(inst Installation, opts Options) (Engine, error) {
	if inst.EntryPath == "" {
		return nil, fmt.Errorf("installation at %q has no entry point", inst.RootPath)
	}
	if opts.NodeBin == "" {
		return nil, errors.New("engine options: node binary is required")
	}
	passes := f.MaxFixPasses
	if passes <= 0 {
		passes = MaxFixPasses
	}
	return &CLIEngine{
		inst:      inst,
		opts:      opts,
		maxPasses: passes,
		rulesMeta: make(map[string]protocol.RuleMeta),
	}, nil
}

// CLIEngine runs the engine's command-line entry point through the node
// binary, one process per lint pass, always in opts.Cwd.
type CLIEngine struct {
	inst      Installation
	opts      Options
	maxPasses int

	mu        sync.Mutex
	rulesMeta map[string]protocol.RuleMeta
}

// Installation returns the installation the engine runs.
func (e *CLIEngine) Installation() Installation { return e.inst }

// LintText lints text as if it were the contents of filePath. With a fix
// predicate, fixes are applied and the text re-linted until it settles.
func (e *CLIEngine) LintText(ctx context.Context, text, filePath string) ([]Result, error) {
	results, err := e.run(ctx, text, filePath)
	if err != nil {
		return nil, err
	}
	if e.opts.Fix == nil || len(results) != 1 {
		return results, nil
	}

	current := text
	fixed := false
	for pass := 0; pass < e.maxPasses; pass++ {
		next, changed := applyFixes(current, results[0].Messages, e.opts.Fix)
		if !changed {
			break
		}
		current = next
		fixed = true
		results, err = e.run(ctx, current, filePath)
		if err != nil {
			return nil, err
		}
		if len(results) != 1 {
			break
		}
	}
	if fixed && len(results) == 1 {
		out := current
		results[0].Output = &out
	}
	return results, nil
}

// LintFiles reads each path from disk and lints its contents.
func (e *CLIEngine) LintFiles(ctx context.Context, paths []string) ([]Result, error) {
	var all []Result
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		results, err := e.LintText(ctx, string(data), p)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}
	return all, nil
}

// RulesMeta returns metadata for every rule that reported in results.
func (e *CLIEngine) RulesMeta(results []Result) map[string]protocol.RuleMeta {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]protocol.RuleMeta)
	for _, r := range results {
		for _, m := range r.Messages {
			if m.RuleID == "" {
				continue
			}
			if meta, ok := e.rulesMeta[m.RuleID]; ok {
				out[m.RuleID] = meta
			}
		}
	}
	return out
}

// OutputFixes writes fixed output back to disk. Files whose contents already
// match are left untouched.
func (e *CLIEngine) OutputFixes(results []Result) error {
	return OutputFixes(results)
}

// OutputFixes writes each result's Output to its file when it differs.
func OutputFixes(results []Result) error {
	for _, r := range results {
		if r.Output == nil || r.FilePath == "" {
			continue
		}
		info, err := os.Stat(r.FilePath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", r.FilePath, err)
		}
		current, err := os.ReadFile(r.FilePath)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.FilePath, err)
		}
		if bytes.Equal(current, []byte(*r.Output)) {
			continue
		}
		if err := os.WriteFile(r.FilePath, []byte(*r.Output), info.Mode().Perm()); err != nil {
			return fmt.Errorf("write fixes to %s: %w", r.FilePath, err)
		}
	}
	return nil
}

func (e *CLIEngine) run(ctx context.Context, text, filePath string) ([]Result, error) {
	args := []string{
		e.inst.EntryPath,
		"--format", "json-with-metadata",
		"--stdin",
		"--stdin-filename", filePath,
	}
	if !e.opts.Ignore {
		args = append(args, "--no-ignore")
	}

	cmd := exec.CommandContext(ctx, e.opts.NodeBin, args...)
	cmd.Dir = e.opts.Cwd
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		// exit 1 means "lint problems found", which is still a result
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, classifyFailure(err, stderr.String())
		}
	}

	var doc cliOutput
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("parse engine output: %w", err)
	}

	e.mu.Lock()
	for id, meta := range doc.Metadata.RulesMeta {
		e.rulesMeta[id] = meta
	}
	e.mu.Unlock()

	for i := range doc.Results {
		if doc.Results[i].FilePath == "" {
			doc.Results[i].FilePath = filePath
		} else if !filepath.IsAbs(doc.Results[i].FilePath) && e.opts.Cwd != "" {
			doc.Results[i].FilePath = filepath.Join(e.opts.Cwd, doc.Results[i].FilePath)
		}
	}
	return doc.Results, nil
}

func classifyFailure(err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	for _, marker := range noConfigMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %s", ErrNoConfig, firstParagraph(msg))
		}
	}
	if msg == "" {
		return fmt.Errorf("engine failed: %w", err)
	}
	return fmt.Errorf("engine failed: %s", firstParagraph(msg))
}

func firstParagraph(s string) string {
	if idx := strings.Index(s, "\n\n"); idx >= 0 {
		return s[:idx]
	}
	return s
}
