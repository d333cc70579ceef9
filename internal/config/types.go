package config

import "time"

// Config represents the complete eslint-node host configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Worker  WorkerConfig  `yaml:"worker"`
	Engine  EngineConfig  `yaml:"engine"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Journal JournalConfig `yaml:"journal"`
	Lint    Options       `yaml:"lint"`

	// SourcePath is the file Load read, empty for Defaults().
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// WorkerConfig defines how the worker subprocess is spawned and supervised.
type WorkerConfig struct {
	// Command is the argv used to start the worker. Empty means "this
	// executable with the worker subcommand".
	Command         []string      `yaml:"command,omitempty"`
	StartupTimeout  time.Duration `yaml:"startup_timeout"`
	ValidateTimeout time.Duration `yaml:"validate_timeout"`
	// JobTimeout bounds a single job. Zero waits forever.
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// EngineConfig defines where the bundled ESLint lives and fixer limits.
type EngineConfig struct {
	BuiltinPath  string `yaml:"builtin_path"`
	MaxFixPasses int    `yaml:"max_fix_passes"`
}

// DaemonConfig defines the local HTTP daemon.
type DaemonConfig struct {
	Listen   string `yaml:"listen"`
	LockPath string `yaml:"lock_path"`
	// Token, when set, is required as a bearer token on /v1 routes.
	Token string `yaml:"token,omitempty"`
}

// JournalConfig defines the SQLite job journal.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Options is the lint options snapshot sent with every job. Field names on
// the wire match what worker implementations expect.
type Options struct {
	NodeBin            string    `json:"nodeBin" yaml:"node_bin"`
	WarnAboutOldEslint bool      `json:"warnAboutOldEslint" yaml:"warn_about_old_eslint"`
	Advanced           Advanced  `json:"advanced" yaml:"advanced"`
	Autofix            Autofix   `json:"autofix" yaml:"autofix"`
	Disabling          Disabling `json:"disabling" yaml:"disabling"`
}

// Advanced groups engine construction and output switches.
type Advanced struct {
	DisableEslintIgnore bool `json:"disableEslintIgnore" yaml:"disable_eslint_ignore"`
	UseCache            bool `json:"useCache" yaml:"use_cache"`
	ShowRuleIDInMessage bool `json:"showRuleIdInMessage" yaml:"show_rule_id_in_message"`
}

// Autofix groups fixing behavior.
type Autofix struct {
	FixOnSave                     bool     `json:"fixOnSave" yaml:"fix_on_save"`
	IgnoreFixableRulesWhileTyping bool     `json:"ignoreFixableRulesWhileTyping" yaml:"ignore_fixable_rules_while_typing"`
	RulesToDisableWhileFixing     []string `json:"rulesToDisableWhileFixing" yaml:"rules_to_disable_while_fixing"`
}

// Disabling groups suppression switches.
type Disabling struct {
	DisableWhenNoEslintConfig bool     `json:"disableWhenNoEslintConfig" yaml:"disable_when_no_eslint_config"`
	RulesToSilenceWhileTyping []string `json:"rulesToSilenceWhileTyping" yaml:"rules_to_silence_while_typing"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Worker: WorkerConfig{
			StartupTimeout:  10 * time.Second,
			ValidateTimeout: 5 * time.Second,
		},
		Engine: EngineConfig{
			MaxFixPasses: 10,
		},
		Daemon: DaemonConfig{
			Listen:   "127.0.0.1:7766",
			LockPath: "./data/eslint-node.lock",
		},
		Journal: JournalConfig{
			Enabled:   false,
			Path:      "./data/journal.db",
			Retention: 7 * 24 * time.Hour,
		},
		Lint: DefaultOptions(),
	}
}

// DefaultOptions returns the lint options used when nothing overrides them.
func DefaultOptions() Options {
	return Options{
		NodeBin:            "node",
		WarnAboutOldEslint: true,
		Advanced: Advanced{
			UseCache:            true,
			ShowRuleIDInMessage: true,
		},
		Autofix: Autofix{
			RulesToDisableWhileFixing: []string{},
		},
		Disabling: Disabling{
			DisableWhenNoEslintConfig: true,
			RulesToSilenceWhileTyping: []string{},
		},
	}
}
