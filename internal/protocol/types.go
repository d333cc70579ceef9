package protocol

import "encoding/json"

// JobType names the operation a worker performs for a bundle.
type JobType string

const (
	JobLint       JobType = "lint"
	JobFix        JobType = "fix"
	JobDebug      JobType = "debug"
	JobClearCache JobType = "clear-cache"
)

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobLint, JobFix, JobDebug, JobClearCache:
		return true
	}
	return false
}

// Response types that are not error kinds.
const (
	TypeReady      = "ready"
	TypeDebug      = "debug"
	TypeClearCache = "clear-cache"
)

// Error kinds carried in the type field of a failed job response.
const (
	ErrTypeConfigNotFound      = "config-not-found"
	ErrTypeIncompatibleVersion = "incompatible-version"
	ErrTypeVersionOverlap      = "version-overlap"
	ErrTypeNoProject           = "no-project"
	ErrTypeUnknown             = "unknown"
)

// Bundle is one job request sent to the worker on stdin.
type Bundle struct {
	Key  string  `json:"key,omitempty"`
	Type JobType `json:"type,omitempty"`
	// Config is the lint options snapshot, opaque to the job manager.
	Config json.RawMessage `json:"config,omitempty"`
	// Contents is nil when the worker should read FilePath from disk.
	Contents             *string `json:"contents,omitempty"`
	FilePath             string  `json:"filePath,omitempty"`
	ProjectPath          string  `json:"projectPath"`
	IsModified           bool    `json:"isModified"`
	LegacyPackagePresent bool    `json:"legacyPackagePresent"`
}

// Position is a [[startRow, startCol], [endRow, endCol]] range, 0-based.
type Position [2][2]int

// Location places a message in a file.
type Location struct {
	File     string   `json:"file"`
	Position Position `json:"position"`
}

// Fix replaces the half-open character range [Range[0], Range[1]) with Text.
type Fix struct {
	Range [2]int `json:"range"`
	Text  string `json:"text"`
}

// Message is one formatted diagnostic.
type Message struct {
	Severity string   `json:"severity"`
	Location Location `json:"location"`
	Fix      *Fix     `json:"fix,omitempty"`
	Excerpt  string   `json:"excerpt"`
	URL      string   `json:"url,omitempty"`
	// RuleID is not part of the editor-facing shape but lets callers filter.
	RuleID string `json:"ruleId,omitempty"`
}

// RuleDocs is the docs block of a rule's metadata.
type RuleDocs struct {
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// RuleMeta is the metadata the engine reports for a rule.
type RuleMeta struct {
	Type    string   `json:"type,omitempty"`
	Fixable string   `json:"fixable,omitempty"`
	Docs    RuleDocs `json:"docs"`
}

// Result is a successful lint or fix reply.
type Result struct {
	Key      string              `json:"key"`
	Results  []Message           `json:"results"`
	Rules    map[string]RuleMeta `json:"rules"`
	FixCount *int                `json:"fixCount,omitempty"`
}

// Failure is a typed job failure reply.
type Failure struct {
	Key     string `json:"key"`
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Version string `json:"version,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// DebugInfo is the reply to a debug job.
type DebugInfo struct {
	Key            string `json:"key"`
	Type           string `json:"type"`
	EslintPath     string `json:"eslintPath"`
	EslintVersion  string `json:"eslintVersion"`
	IsIncompatible bool   `json:"isIncompatible"`
	IsOverlap      bool   `json:"isOverlap"`
	IsBuiltIn      bool   `json:"isBuiltIn"`
	WorkerPid      int    `json:"workerPid"`
}

// ClearCacheAck acknowledges a clear-cache job.
type ClearCacheAck struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	Result bool   `json:"result"`
}

// LogLine is an informational stdout line. It is never keyed.
type LogLine struct {
	Log string `json:"log"`
}

// Ready is the handshake a worker prints once it accepts bundles.
type Ready struct {
	Type string `json:"type"`
}

// ErrorLine is written to stderr for failures outside the typed reply set.
type ErrorLine struct {
	Key      string `json:"key,omitempty"`
	Error    string `json:"error"`
	Stack    string `json:"stack,omitempty"`
	Uncaught bool   `json:"uncaught,omitempty"`
}

// Response is the union of every line a worker may print, as decoded by the
// host. Which fields are set depends on the line's shape.
type Response struct {
	Key     string  `json:"key,omitempty"`
	Type    string  `json:"type,omitempty"`
	Log     *string `json:"log,omitempty"`
	Error   string  `json:"error,omitempty"`
	Version string  `json:"version,omitempty"`
	Stack   string  `json:"stack,omitempty"`

	Results  []Message           `json:"results,omitempty"`
	Rules    map[string]RuleMeta `json:"rules,omitempty"`
	FixCount *int                `json:"fixCount,omitempty"`

	Result bool `json:"result,omitempty"`

	EslintPath     string `json:"eslintPath,omitempty"`
	EslintVersion  string `json:"eslintVersion,omitempty"`
	IsIncompatible bool   `json:"isIncompatible,omitempty"`
	IsOverlap      bool   `json:"isOverlap,omitempty"`
	IsBuiltIn      bool   `json:"isBuiltIn,omitempty"`
	WorkerPid      int    `json:"workerPid,omitempty"`

	Uncaught bool `json:"uncaught,omitempty"`
}

// IsLog reports whether the line is an informational log line.
func (r *Response) IsLog() bool { return r.Log != nil }

// IsReady reports whether the line is the readiness handshake.
func (r *Response) IsReady() bool { return r.Key == "" && r.Type == TypeReady }

// IsError reports whether the line describes a failure.
func (r *Response) IsError() bool { return r.Error != "" }
