package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// OverridesFile is the per-project JSON file whose top-level keys replace the
// matching groups of the host lint options.
const OverridesFile = ".linter-eslint"

// ApplyOverrides returns base with each top-level key of raw replacing the
// whole matching group. Keys that base does not know are ignored.
func ApplyOverrides(base Options, raw []byte) (Options, error) {
	if len(raw) == 0 {
		return base, nil
	}

	var overrides map[string]json.RawMessage
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return base, fmt.Errorf("parse %s: %w", OverridesFile, err)
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base, fmt.Errorf("marshal options: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(baseJSON, &merged); err != nil {
		return base, fmt.Errorf("unmarshal options: %w", err)
	}
	for k, v := range overrides {
		if _, known := merged[k]; known {
			merged[k] = v
		}
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return base, fmt.Errorf("marshal merged options: %w", err)
	}
	var out Options
	if err := json.Unmarshal(mergedJSON, &out); err != nil {
		return base, fmt.Errorf("%s: %w", OverridesFile, err)
	}
	return out, nil
}

// OverrideStore caches the raw contents of each project's overrides file.
type OverrideStore struct {
	mu    sync.RWMutex
	byDir map[string][]byte
}

// NewOverrideStore returns an empty store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{byDir: make(map[string][]byte)}
}

// Rescan re-reads the overrides file of projectDir. A missing file clears
// the entry. A file that fails to parse is dropped and the error returned.
func (s *OverrideStore) Rescan(projectDir string) error {
	if projectDir == "" {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(projectDir, OverridesFile))
	if err != nil {
		s.mu.Lock()
		delete(s.byDir, projectDir)
		s.mu.Unlock()
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", OverridesFile, err)
	}

	if !json.Valid(data) {
		s.mu.Lock()
		delete(s.byDir, projectDir)
		s.mu.Unlock()
		return fmt.Errorf("parse %s in %s: invalid JSON", OverridesFile, projectDir)
	}

	s.mu.Lock()
	s.byDir[projectDir] = data
	s.mu.Unlock()
	return nil
}

// Resolve returns base with the overrides of projectDir applied, reading the
// file on first use.
func (s *OverrideStore) Resolve(base Options, projectDir string) (Options, error) {
	if projectDir == "" {
		return base, nil
	}
	s.mu.RLock()
	raw, ok := s.byDir[projectDir]
	s.mu.RUnlock()
	if !ok {
		if err := s.Rescan(projectDir); err != nil {
			return base, err
		}
		s.mu.RLock()
		raw = s.byDir[projectDir]
		s.mu.RUnlock()
	}
	return ApplyOverrides(base, raw)
}
