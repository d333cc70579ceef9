package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/engine"
	"github.com/mattjoyce/eslint-node/internal/log"
	"github.com/mattjoyce/eslint-node/internal/protocol"
)

const (
	// MinimumVersion is the oldest engine version the worker will run.
	MinimumVersion = "7.0.0"
	// ModernVersion is the first engine version the legacy package cannot run.
	ModernVersion = "8.0.0"
)

// Resolver finds the engine installation for a directory.
type Resolver interface {
	Resolve(fromDir string) (engine.Installation, error)
}

// Reply is what the dispatcher answers a bundle with. Exactly one of Out and
// Err is set, except for bundles that get no reply at all.
type Reply struct {
	Out any
	Err *protocol.ErrorLine
}

type cacheEntry struct {
	cwd  string
	inst engine.Installation
	lint engine.Engine
	fix  engine.Engine
}

type versionError struct {
	kind    string
	version string
}

func (e *versionError) Error() string {
	if e.kind == protocol.ErrTypeIncompatibleVersion {
		return fmt.Sprintf("This project uses ESLint version %s; eslint-node requires a minimum of %s.", e.version, MinimumVersion)
	}
	return "This version of ESLint is compatible with linter-eslint, which is present in this installation."
}

// Dispatcher resolves, caches and runs engines for job bundles.
type Dispatcher struct {
	factory  engine.Factory
	resolver Resolver
	logger   *slog.Logger
	pid      int

	mu      sync.Mutex
	paths   map[string]engine.Installation
	engines map[string]*cacheEntry
}

// NewDispatcher returns a Dispatcher with empty caches.
func NewDispatcher(factory engine.Factory, resolver Resolver) *Dispatcher {
	return &Dispatcher{
		factory:  factory,
		resolver: resolver,
		logger:   log.WithComponent("worker"),
		pid:      os.Getpid(),
		paths:    make(map[string]engine.Installation),
		engines:  make(map[string]*cacheEntry),
	}
}

// ClearCache drops every cached installation and engine instance.
func (d *Dispatcher) ClearCache() {
	d.mu.Lock()
	clear(d.paths)
	clear(d.engines)
	d.mu.Unlock()
}

// CacheSize returns the number of cached engine pairs.
func (d *Dispatcher) CacheSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.engines)
}

// Handle runs one bundle to completion and returns its reply.
func (d *Dispatcher) Handle(ctx context.Context, b *protocol.Bundle) Reply {
	if b.Key == "" {
		return Reply{Err: &protocol.ErrorLine{Error: "No job key"}}
	}
	if b.Type == "" {
		return failure(b.Key, protocol.ErrTypeUnknown, "No job type", "")
	}
	if !b.Type.Valid() {
		return failure(b.Key, protocol.ErrTypeUnknown, fmt.Sprintf("Unknown job type: %s", b.Type), "")
	}

	if b.Type == protocol.JobClearCache {
		d.ClearCache()
		d.logger.Debug("cache cleared")
		return Reply{Out: protocol.ClearCacheAck{Key: b.Key, Type: protocol.TypeClearCache, Result: true}}
	}

	opts := config.DefaultOptions()
	if len(b.Config) > 0 {
		if err := json.Unmarshal(b.Config, &opts); err != nil {
			return failure(b.Key, protocol.ErrTypeUnknown, fmt.Sprintf("Invalid config: %v", err), "")
		}
	}

	isDebug := b.Type == protocol.JobDebug
	if !isDebug && b.ProjectPath == "" && opts.Disabling.DisableWhenNoEslintConfig {
		return failure(b.Key, protocol.ErrTypeNoProject, "No project path; nowhere to look for an ESLint configuration.", "")
	}

	entry, err := d.getEngines(b, opts)
	if err != nil {
		var verr *versionError
		if errors.As(err, &verr) {
			return failure(b.Key, verr.kind, verr.Error(), verr.version)
		}
		d.logger.Info("engine resolution failed", "file", b.FilePath, "error", err)
		return failure(b.Key, protocol.ErrTypeUnknown, fmt.Sprintf("Can't find an ESLint for file: %s", b.FilePath), "")
	}

	if isDebug {
		incompatible, overlap := Compatibility(entry.inst.Version)
		return Reply{Out: protocol.DebugInfo{
			Key:            b.Key,
			Type:           protocol.TypeDebug,
			EslintPath:     entry.inst.RootPath,
			EslintVersion:  entry.inst.Version,
			IsIncompatible: incompatible,
			IsOverlap:      overlap,
			IsBuiltIn:      entry.inst.BuiltIn,
			WorkerPid:      d.pid,
		}}
	}

	var res *protocol.Result
	if b.Type == protocol.JobFix {
		res, err = d.runFix(ctx, entry, b, opts)
	} else {
		res, err = d.runLint(ctx, entry, b, opts)
	}
	if err != nil {
		if errors.Is(err, engine.ErrNoConfig) {
			return failure(b.Key, protocol.ErrTypeConfigNotFound, err.Error(), "")
		}
		return Reply{Err: &protocol.ErrorLine{Key: b.Key, Error: err.Error()}}
	}
	return Reply{Out: res}
}

func (d *Dispatcher) runLint(ctx context.Context, entry *cacheEntry, b *protocol.Bundle, opts config.Options) (*protocol.Result, error) {
	results, err := lint(ctx, entry.lint, b)
	if err != nil {
		return nil, err
	}
	rules := entry.lint.RulesMeta(results)
	return formatResults(results, rules, opts, formatOptions{key: b.Key, isModified: b.IsModified}), nil
}

func (d *Dispatcher) runFix(ctx context.Context, entry *cacheEntry, b *protocol.Bundle, opts config.Options) (*protocol.Result, error) {
	pre, err := lint(ctx, entry.lint, b)
	if err != nil {
		return nil, err
	}
	results, err := lint(ctx, entry.fix, b)
	if err != nil {
		return nil, err
	}
	if err := entry.fix.OutputFixes(results); err != nil {
		return nil, err
	}
	rules := entry.fix.RulesMeta(results)
	return formatResults(results, rules, opts, formatOptions{
		key:              b.Key,
		isModified:       b.IsModified,
		isFixJob:         true,
		lintMessageCount: engine.CountMessages(pre),
	}), nil
}

func lint(ctx context.Context, eng engine.Engine, b *protocol.Bundle) ([]engine.Result, error) {
	if b.Contents != nil {
		return eng.LintText(ctx, *b.Contents, b.FilePath)
	}
	return eng.LintFiles(ctx, []string{b.FilePath})
}

// getEngines returns the cached engine pair for the bundle's file, building
// it when absent or when caching is off, then applies the version gates.
func (d *Dispatcher) getEngines(b *protocol.Bundle, opts config.Options) (*cacheEntry, error) {
	resolveDir := FindCwd(b.FilePath, b.ProjectPath)
	useCache := opts.Advanced.UseCache

	d.mu.Lock()
	defer d.mu.Unlock()

	inst, ok := d.paths[resolveDir]
	if !useCache || !ok {
		fromDir := resolveDir
		if b.FilePath != "" {
			fromDir = filepath.Dir(b.FilePath)
		}
		resolved, err := d.resolver.Resolve(fromDir)
		if err != nil {
			return nil, err
		}
		inst = resolved
		d.paths[resolveDir] = inst
	}

	entry, ok := d.engines[resolveDir]
	if !useCache || !ok {
		d.logger.Debug("creating engine instances", "cwd", resolveDir, "version", inst.Version, "builtin", inst.BuiltIn)

		common := engine.Options{
			NodeBin: opts.NodeBin,
			Cwd:     resolveDir,
			Ignore:  !opts.Advanced.DisableEslintIgnore,
		}
		lintEngine, err := d.factory.New(inst, common)
		if err != nil {
			return nil, fmt.Errorf("create lint engine: %w", err)
		}

		disabled := slices.Clone(opts.Autofix.RulesToDisableWhileFixing)
		fixOpts := common
		fixOpts.Fix = func(m engine.Message) bool {
			return !slices.Contains(disabled, m.RuleID)
		}
		fixEngine, err := d.factory.New(inst, fixOpts)
		if err != nil {
			return nil, fmt.Errorf("create fix engine: %w", err)
		}

		entry = &cacheEntry{cwd: resolveDir, inst: inst, lint: lintEngine, fix: fixEngine}
		d.engines[resolveDir] = entry
	}

	if b.Type != protocol.JobDebug {
		if below(entry.inst.Version, MinimumVersion) {
			return nil, &versionError{kind: protocol.ErrTypeIncompatibleVersion, version: entry.inst.Version}
		}
		if below(entry.inst.Version, ModernVersion) && b.LegacyPackagePresent {
			return nil, &versionError{kind: protocol.ErrTypeVersionOverlap, version: entry.inst.Version}
		}
	}
	return entry, nil
}

// Compatibility classifies an engine version: incompatible versions are
// below MinimumVersion, overlapping ones are runnable but below ModernVersion.
func Compatibility(version string) (incompatible, overlap bool) {
	incompatible = below(version, MinimumVersion)
	return incompatible, !incompatible && below(version, ModernVersion)
}

// below reports whether version sorts strictly before threshold. Versions
// that do not parse sort before every valid one.
func below(version, threshold string) bool {
	return semver.Compare(canonical(version), canonical(threshold)) < 0
}

func canonical(v string) string {
	if v == "" || v[0] == 'v' {
		return v
	}
	return "v" + v
}

func failure(key, kind, msg, version string) Reply {
	return Reply{Out: protocol.Failure{Key: key, Error: msg, Type: kind, Version: version}}
}
