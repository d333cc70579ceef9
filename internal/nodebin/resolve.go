package nodebin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ResolveAbsolutePath returns candidate unchanged when it is an absolute path
// to an existing file, otherwise looks it up on PATH.
func ResolveAbsolutePath(candidate string) (string, error) {
	if filepath.IsAbs(candidate) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	resolved, err := exec.LookPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", candidate, err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", candidate, err)
	}
	return abs, nil
}
