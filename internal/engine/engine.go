// Package engine is the boundary to the external lint engine. The worker
// only talks to it through the Engine and Factory interfaces.
package engine

import (
	"context"
	"errors"

	"github.com/mattjoyce/eslint-node/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/mattjoyce/eslint-node/internal/engine Engine,Factory

// ErrNoConfig is returned when the engine finds no configuration for a file.
var ErrNoConfig = errors.New("no ESLint configuration found")

// ErrNotFound is returned by Resolve when no installation is reachable.
var ErrNotFound = errors.New("eslint installation not found")

// Message is a single engine diagnostic. Line and column are 1-based.
type Message struct {
	RuleID    string        `json:"ruleId"`
	Severity  int           `json:"severity"`
	Message   string        `json:"message"`
	Line      int           `json:"line"`
	Column    int           `json:"column"`
	EndLine   int           `json:"endLine,omitempty"`
	EndColumn int           `json:"endColumn,omitempty"`
	Fatal     bool          `json:"fatal,omitempty"`
	Fix       *protocol.Fix `json:"fix,omitempty"`
}

// Result holds the diagnostics for one file.
type Result struct {
	FilePath string    `json:"filePath"`
	Messages []Message `json:"messages"`
	Source   string    `json:"source,omitempty"`
	// Output is the fixed text. It is nil when no fix was applied.
	Output *string `json:"output,omitempty"`
}

// FixPredicate decides whether a message's fix may be applied.
type FixPredicate func(Message) bool

// Options configures an Engine instance.
type Options struct {
	// NodeBin is the runtime used to execute the engine.
	NodeBin string
	// Cwd is the directory the engine resolves configuration from.
	Cwd string
	// Ignore honours the engine's ignore files when true.
	Ignore bool
	// Fix enables fixing. Nil means lint only.
	Fix FixPredicate
}

// Installation locates one copy of the engine on disk.
type Installation struct {
	EntryPath string
	RootPath  string
	Version   string
	BuiltIn   bool
}

// Engine lints text or files.
type Engine interface {
	LintText(ctx context.Context, text, filePath string) ([]Result, error)
	LintFiles(ctx context.Context, paths []string) ([]Result, error)
	RulesMeta(results []Result) map[string]protocol.RuleMeta
	OutputFixes(results []Result) error
}

// Factory builds engines for an installation.
type Factory interface {
	New(inst Installation, opts Options) (Engine, error)
}

// CountMessages sums the messages across results.
func CountMessages(results []Result) int {
	n := 0
	for _, r := range results {
		n += len(r.Messages)
	}
	return n
}
