package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Resolver finds the engine installation that applies to a file, falling back
// to a bundled copy.
type Resolver struct {
	// BuiltinPath is the root of the bundled engine package. Empty disables
	// the fallback.
	BuiltinPath string
}

// Resolve walks upward from fromDir looking for node_modules/eslint, the way
// Node's module resolution would, and falls back to the built-in copy.
func (r Resolver) Resolve(fromDir string) (Installation, error) {
	if inst, err := findLocal(fromDir); err == nil {
		inst.BuiltIn = r.BuiltinPath != "" && sameDir(inst.RootPath, r.BuiltinPath)
		return inst, nil
	}
	return r.Builtin()
}

// Builtin returns the bundled installation.
func (r Resolver) Builtin() (Installation, error) {
	if r.BuiltinPath == "" {
		return Installation{}, fmt.Errorf("%w: no built-in copy configured", ErrNotFound)
	}
	inst, err := ReadInstallation(r.BuiltinPath)
	if err != nil {
		return Installation{}, err
	}
	inst.BuiltIn = true
	return inst, nil
}

func findLocal(fromDir string) (Installation, error) {
	dir, err := filepath.Abs(fromDir)
	if err != nil {
		return Installation{}, err
	}
	for {
		root := filepath.Join(dir, "node_modules", "eslint")
		if inst, err := ReadInstallation(root); err == nil {
			return inst, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Installation{}, fmt.Errorf("%w: from %s", ErrNotFound, fromDir)
		}
		dir = parent
	}
}

// ReadInstallation reads the package metadata of an engine rooted at root.
func ReadInstallation(root string) (Installation, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return Installation{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return Installation{}, fmt.Errorf("parse %s/package.json: %w", root, err)
	}
	if pkg.Version == "" {
		return Installation{}, fmt.Errorf("%s/package.json has no version", root)
	}
	return Installation{
		EntryPath: filepath.Join(root, "bin", "eslint.js"),
		RootPath:  root,
		Version:   pkg.Version,
	}, nil
}

func sameDir(a, b string) bool {
	ea, err1 := filepath.EvalSymlinks(a)
	eb, err2 := filepath.EvalSymlinks(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ea == eb
}
