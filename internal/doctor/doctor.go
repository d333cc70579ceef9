// Package doctor checks that eslint-node can actually lint: the
// configuration, the node binary and the ESLint each project resolves to.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/eslint-node/internal/config"
	"github.com/mattjoyce/eslint-node/internal/engine"
	"github.com/mattjoyce/eslint-node/internal/worker"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	// Info records facts worth seeing even when nothing is wrong.
	Info []Issue `json:"info,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// NodeValidator probes a node binary.
type NodeValidator interface {
	Validate(ctx context.Context, candidate string) (string, error)
}

// EngineResolver finds the ESLint installation for a directory.
type EngineResolver interface {
	Resolve(fromDir string) (engine.Installation, error)
}

// eslintConfigFiles are the names ESLint looks for, nearest directory first.
var eslintConfigFiles = []string{
	"eslint.config.js", "eslint.config.mjs", "eslint.config.cjs",
	".eslintrc.js", ".eslintrc.cjs", ".eslintrc.yaml", ".eslintrc.yml", ".eslintrc.json", ".eslintrc",
}

var lookPath = exec.LookPath

// Doctor validates configuration and the environment it points at.
type Doctor struct {
	cfg       *config.Config
	validator NodeValidator
	resolver  EngineResolver
	projects  []string
}

// New creates a Doctor. projects are directories to check ESLint resolution
// and per-project overrides for.
func New(cfg *config.Config, validator NodeValidator, resolver EngineResolver, projects ...string) *Doctor {
	return &Doctor{cfg: cfg, validator: validator, resolver: resolver, projects: projects}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateDaemonConfig(r)
	d.validateJournal(r)
	d.validateWorkerCommand(r)
	d.validateNodeBin(ctx, r)
	d.validateBuiltin(r)
	for _, project := range d.projects {
		d.validateProject(r, project)
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addInfo(r *Result, category, field, msg string) {
	r.Info = append(r.Info, Issue{Category: category, Field: field, Message: msg})
}

// validateServiceConfig checks fields a hand-built Config may have left empty.
func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.SourcePath != "" {
		d.addInfo(r, "config", "", "loaded "+d.cfg.SourcePath)
	} else {
		d.addInfo(r, "config", "", "no config file found; using defaults")
	}
	if d.cfg.Worker.StartupTimeout <= 0 {
		d.addError(r, "service", "worker.startup_timeout", "startup_timeout must be positive")
	}
	if d.cfg.Engine.MaxFixPasses < 1 {
		d.addError(r, "service", "engine.max_fix_passes", "max_fix_passes must be positive")
	}
	if d.cfg.Worker.JobTimeout == 0 {
		d.addInfo(r, "service", "worker.job_timeout", "jobs wait for the worker without a timeout")
	}
}

// validateDaemonConfig checks the HTTP listener and its authentication.
func (d *Doctor) validateDaemonConfig(r *Result) {
	host, _, err := net.SplitHostPort(d.cfg.Daemon.Listen)
	if err != nil {
		d.addError(r, "daemon", "daemon.listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.Daemon.Listen, err))
		return
	}
	if d.cfg.Daemon.Token == "" && !isLoopback(host) {
		d.addWarning(r, "daemon", "daemon.token",
			fmt.Sprintf("daemon listens on %s without a token; anyone who can reach it can read files through it", d.cfg.Daemon.Listen))
	}
	if dir := filepath.Dir(d.cfg.Daemon.LockPath); !dirExists(dir) {
		d.addWarning(r, "daemon", "daemon.lock_path", fmt.Sprintf("directory %s does not exist yet; it is created on start", dir))
	}
}

func (d *Doctor) validateJournal(r *Result) {
	if !d.cfg.Journal.Enabled {
		return
	}
	if d.cfg.Journal.Retention <= 0 {
		d.addWarning(r, "journal", "journal.retention", "journal is never pruned")
	}
	if dir := filepath.Dir(d.cfg.Journal.Path); !dirExists(dir) {
		d.addWarning(r, "journal", "journal.path", fmt.Sprintf("directory %s does not exist yet; it is created on start", dir))
	}
}

// validateWorkerCommand checks an explicitly configured worker argv.
func (d *Doctor) validateWorkerCommand(r *Result) {
	if len(d.cfg.Worker.Command) == 0 {
		return
	}
	bin := d.cfg.Worker.Command[0]
	if _, err := lookPath(bin); err != nil {
		d.addError(r, "worker", "worker.command", fmt.Sprintf("worker command %q not found: %v", bin, err))
	}
}

// validateNodeBin probes the configured node binary the way the job manager
// does before spawning.
func (d *Doctor) validateNodeBin(ctx context.Context, r *Result) {
	nodeBin := d.cfg.Lint.NodeBin
	if d.validator == nil {
		return
	}
	version, err := d.validator.Validate(ctx, nodeBin)
	if err != nil {
		d.addError(r, "node", "lint.node_bin", fmt.Sprintf("node binary %q is not usable: %v", nodeBin, err))
		return
	}
	d.addInfo(r, "node", "lint.node_bin", fmt.Sprintf("%s reports %s", nodeBin, version))
}

func (d *Doctor) validateBuiltin(r *Result) {
	if d.cfg.Engine.BuiltinPath == "" {
		d.addWarning(r, "engine", "engine.builtin_path", "no built-in ESLint configured; projects without their own ESLint will fail to lint")
		return
	}
	inst, err := engine.ReadInstallation(d.cfg.Engine.BuiltinPath)
	if err != nil {
		d.addError(r, "engine", "engine.builtin_path", fmt.Sprintf("built-in ESLint unusable: %v", err))
		return
	}
	d.addInfo(r, "engine", "engine.builtin_path", fmt.Sprintf("built-in ESLint %s at %s", inst.Version, inst.RootPath))
}

// validateProject checks what linting a file in project would run into.
func (d *Doctor) validateProject(r *Result, project string) {
	field := "project:" + project
	if !dirExists(project) {
		d.addError(r, "project", field, "not a directory")
		return
	}

	if d.resolver != nil {
		inst, err := d.resolver.Resolve(project)
		switch {
		case errors.Is(err, engine.ErrNotFound):
			d.addError(r, "project", field, "no ESLint installation found and no built-in fallback")
		case err != nil:
			d.addError(r, "project", field, fmt.Sprintf("resolve ESLint: %v", err))
		default:
			where := "project"
			if inst.BuiltIn {
				where = "built-in"
			}
			d.addInfo(r, "project", field, fmt.Sprintf("uses %s ESLint %s at %s", where, inst.Version, inst.RootPath))

			incompatible, overlap := worker.Compatibility(inst.Version)
			if incompatible {
				d.addWarning(r, "project", field, fmt.Sprintf(
					"ESLint %s is older than %s; eslint-node will not lint this project", inst.Version, worker.MinimumVersion))
			} else if overlap {
				d.addInfo(r, "project", field, fmt.Sprintf(
					"ESLint %s is below %s; if the legacy package is installed it lints this project instead", inst.Version, worker.ModernVersion))
			}
		}
	}

	if !hasESLintConfig(project) {
		msg := "no ESLint configuration found in the project or above it"
		if d.cfg.Lint.Disabling.DisableWhenNoEslintConfig {
			msg += "; linting stays disabled (disabling.disable_when_no_eslint_config)"
		}
		d.addWarning(r, "project", field, msg)
	}

	raw, err := os.ReadFile(filepath.Join(project, config.OverridesFile))
	if err == nil {
		if _, err := config.ApplyOverrides(d.cfg.Lint, raw); err != nil {
			d.addError(r, "project", field, err.Error())
		} else {
			d.addInfo(r, "project", field, "applies "+config.OverridesFile+" overrides")
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		d.addWarning(r, "project", field, fmt.Sprintf("read %s: %v", config.OverridesFile, err))
	}
}

// hasESLintConfig walks up from dir looking for an ESLint config file or an
// eslintConfig key in package.json.
func hasESLintConfig(dir string) bool {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	for {
		for _, name := range eslintConfigFiles {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return true
			}
		}
		if pkgHasESLintConfig(filepath.Join(dir, "package.json")) {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func pkgHasESLintConfig(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var pkg struct {
		ESLintConfig json.RawMessage `json:"eslintConfig"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}
	return len(pkg.ESLintConfig) > 0
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("eslint-node looks healthy.\n")
	case r.Valid:
		fmt.Fprintf(&b, "eslint-node looks usable (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "eslint-node cannot lint (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	write := func(label string, issues []Issue) {
		for _, i := range issues {
			if i.Field != "" {
				fmt.Fprintf(&b, "  %-5s [%s] %s: %s\n", label, i.Category, i.Field, i.Message)
			} else {
				fmt.Fprintf(&b, "  %-5s [%s] %s\n", label, i.Category, i.Message)
			}
		}
	}
	write("ERROR", r.Errors)
	write("WARN", r.Warnings)
	write("OK", r.Info)

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
