package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name:    "empty file yields defaults",
			yaml:    ``,
			wantErr: false,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Lint.NodeBin != "node" {
					t.Errorf("node_bin = %q, want node", cfg.Lint.NodeBin)
				}
				if !cfg.Lint.Advanced.ShowRuleIDInMessage {
					t.Error("show_rule_id_in_message should default to true")
				}
				if !cfg.Lint.Disabling.DisableWhenNoEslintConfig {
					t.Error("disable_when_no_eslint_config should default to true")
				}
				if cfg.Worker.JobTimeout != 0 {
					t.Error("job_timeout should default to zero")
				}
				if cfg.Engine.MaxFixPasses != 10 {
					t.Errorf("max_fix_passes = %d, want 10", cfg.Engine.MaxFixPasses)
				}
			},
		},
		{
			name: "lint options parsed",
			yaml: `
lint:
  node_bin: /usr/local/bin/node
  advanced:
    use_cache: false
    show_rule_id_in_message: false
  autofix:
    fix_on_save: true
    rules_to_disable_while_fixing: [semi]
  disabling:
    disable_when_no_eslint_config: false
    rules_to_silence_while_typing: [no-trailing-spaces]
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Lint.NodeBin != "/usr/local/bin/node" {
					t.Error("node_bin not parsed")
				}
				if cfg.Lint.Advanced.UseCache {
					t.Error("use_cache not parsed")
				}
				if cfg.Lint.Advanced.ShowRuleIDInMessage {
					t.Error("show_rule_id_in_message not parsed")
				}
				if !cfg.Lint.Autofix.FixOnSave {
					t.Error("fix_on_save not parsed")
				}
				if len(cfg.Lint.Autofix.RulesToDisableWhileFixing) != 1 || cfg.Lint.Autofix.RulesToDisableWhileFixing[0] != "semi" {
					t.Error("rules_to_disable_while_fixing not parsed")
				}
				if cfg.Lint.Disabling.DisableWhenNoEslintConfig {
					t.Error("disable_when_no_eslint_config not parsed")
				}
				// untouched defaults survive
				if !cfg.Lint.WarnAboutOldEslint {
					t.Error("warn_about_old_eslint default lost")
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
lint:
  node_bin: ${NODE_BIN}
worker:
  job_timeout: 30s
`,
			env: map[string]string{"NODE_BIN": "/opt/node/bin/node"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Lint.NodeBin != "/opt/node/bin/node" {
					t.Errorf("node_bin = %q", cfg.Lint.NodeBin)
				}
				if cfg.Worker.JobTimeout != 30*time.Second {
					t.Error("job_timeout not parsed")
				}
			},
		},
		{
			name: "unset env var rejected",
			yaml: `
lint:
  node_bin: ${ESLINT_NODE_TEST_UNSET_VAR}
`,
			wantErr: true,
		},
		{
			name: "daemon token from env",
			yaml: `
daemon:
  token: ${ESLINT_NODE_TEST_TOKEN}
`,
			env: map[string]string{"ESLINT_NODE_TEST_TOKEN": "s3cret"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Daemon.Token != "s3cret" {
					t.Errorf("token = %q", cfg.Daemon.Token)
				}
			},
		},
		{
			name: "unset token env var rejected",
			yaml: `
daemon:
  token: ${ESLINT_NODE_TEST_UNSET_TOKEN}
`,
			wantErr: true,
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: chatty
`,
			wantErr: true,
		},
		{
			name: "negative job timeout",
			yaml: `
worker:
  job_timeout: -1s
`,
			wantErr: true,
		},
		{
			name: "unknown field rejected",
			yaml: `
lint:
  nodebin: node
`,
			wantErr: true,
		},
		{
			name: "relative paths resolved against config dir",
			yaml: `
journal:
  enabled: true
  path: ./journal.db
daemon:
  lock_path: run/eslint-node.lock
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if !filepath.IsAbs(cfg.Journal.Path) {
					t.Errorf("journal.path not absolute: %q", cfg.Journal.Path)
				}
				if filepath.Base(cfg.Daemon.LockPath) != "eslint-node.lock" || !filepath.IsAbs(cfg.Daemon.LockPath) {
					t.Errorf("daemon.lock_path = %q", cfg.Daemon.LockPath)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(configPath)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.SourcePath != configPath {
				t.Errorf("SourcePath = %q, want %q", cfg.SourcePath, configPath)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("service:\n  log_format: text\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load(dir) error: %v", err)
	}
	if cfg.Service.LogFormat != "text" {
		t.Errorf("log_format = %q, want text", cfg.Service.LogFormat)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDiscoverEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if got != path {
		t.Errorf("Discover() = %q, want %q", got, path)
	}

	t.Setenv(EnvConfigPath, filepath.Join(tmpDir, "missing.yaml"))
	if _, err := Discover(); err == nil {
		t.Error("expected error for env path that does not exist")
	}
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("ESLINT_NODE_TEST_SET", "value")

	got := interpolateEnv("a=${ESLINT_NODE_TEST_SET} b=${ESLINT_NODE_TEST_NOT_SET}")
	want := "a=value b=${ESLINT_NODE_TEST_NOT_SET}"
	if got != want {
		t.Errorf("interpolateEnv() = %q, want %q", got, want)
	}
}
