package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvConfigPath names the environment variable that points at a config file.
const EnvConfigPath = "ESLINT_NODE_CONFIG"

// Load reads and parses configuration from a file. The file is decoded on top
// of Defaults(), so boolean switches that default to true stay true unless the
// file says otherwise.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourcePath = absPath
	cfg.resolveRelativePaths(filepath.Dir(absPath))
	return cfg, nil
}

// Parse decodes YAML bytes on top of Defaults() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	interpolated := interpolateEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolated)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyConfigDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover finds a config file by checking standard locations.
// Priority order: $ESLINT_NODE_CONFIG, ~/.config/eslint-node/config.yaml, ./eslint-node.yaml.
// An empty path with a nil error means "no file, use defaults".
func Discover() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s points at %q: %w", EnvConfigPath, p, err)
		}
		return p, nil
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "eslint-node", "config.yaml")
		if _, err := os.Stat(userConfig); err == nil {
			return userConfig, nil
		}
	}

	if _, err := os.Stat("eslint-node.yaml"); err == nil {
		return "eslint-node.yaml", nil
	}
	return "", nil
}

// LoadOrDefault loads path when given, otherwise the discovered file, otherwise defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		discovered, err := Discover()
		if err != nil {
			return nil, err
		}
		path = discovered
	}
	if path == "" {
		return Defaults(), nil
	}
	return Load(path)
}

func (c *Config) resolveRelativePaths(baseDir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	c.Daemon.LockPath = abs(c.Daemon.LockPath)
	c.Journal.Path = abs(c.Journal.Path)
	c.Engine.BuiltinPath = abs(c.Engine.BuiltinPath)
}

func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Worker.StartupTimeout == 0 {
		cfg.Worker.StartupTimeout = defaults.Worker.StartupTimeout
	}
	if cfg.Worker.ValidateTimeout == 0 {
		cfg.Worker.ValidateTimeout = defaults.Worker.ValidateTimeout
	}
	if cfg.Engine.MaxFixPasses == 0 {
		cfg.Engine.MaxFixPasses = defaults.Engine.MaxFixPasses
	}
	if cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = defaults.Daemon.Listen
	}
	if cfg.Daemon.LockPath == "" {
		cfg.Daemon.LockPath = defaults.Daemon.LockPath
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaults.Journal.Path
	}
	if cfg.Lint.NodeBin == "" {
		cfg.Lint.NodeBin = defaults.Lint.NodeBin
	}
	if cfg.Lint.Autofix.RulesToDisableWhileFixing == nil {
		cfg.Lint.Autofix.RulesToDisableWhileFixing = []string{}
	}
	if cfg.Lint.Disabling.RulesToSilenceWhileTyping == nil {
		cfg.Lint.Disabling.RulesToSilenceWhileTyping = []string{}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if envVarPattern.MatchString(cfg.Lint.NodeBin) {
		matches := envVarPattern.FindStringSubmatch(cfg.Lint.NodeBin)
		return fmt.Errorf("lint.node_bin: environment variable ${%s} is not set", matches[1])
	}

	if cfg.Worker.StartupTimeout < 0 {
		return fmt.Errorf("worker.startup_timeout must not be negative")
	}
	if cfg.Worker.JobTimeout < 0 {
		return fmt.Errorf("worker.job_timeout must not be negative")
	}
	if cfg.Worker.ValidateTimeout < time.Millisecond {
		return fmt.Errorf("worker.validate_timeout must be at least 1ms")
	}
	if cfg.Engine.MaxFixPasses < 1 {
		return fmt.Errorf("engine.max_fix_passes must be positive")
	}

	if envVarPattern.MatchString(cfg.Daemon.Token) {
		matches := envVarPattern.FindStringSubmatch(cfg.Daemon.Token)
		return fmt.Errorf("daemon.token: environment variable ${%s} is not set", matches[1])
	}

	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when journal is enabled")
	}
	return nil
}
