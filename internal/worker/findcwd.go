package worker

import (
	"os"
	"path/filepath"
	"strings"
)

// IgnoreMarker is the file whose presence marks a directory the engine is
// meant to be run from.
const IgnoreMarker = ".eslintignore"

// FindCwd picks the directory engine instances for filePath are resolved and
// run from. Starting at the file's directory it walks up to the nearest
// directory holding an IgnoreMarker, stopping at projectPath. Files outside
// projectPath, or with no project at all, use their own directory.
func FindCwd(filePath, projectPath string) string {
	if filePath == "" {
		return projectPath
	}
	fileDir := filepath.Dir(filePath)
	if projectPath == "" || !descendsFrom(filePath, projectPath) {
		return fileDir
	}

	root := filepath.Clean(projectPath)
	for dir := fileDir; len(dir) > len(root); dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, IgnoreMarker)); err == nil {
			return dir
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return root
}

func descendsFrom(filePath, projectPath string) bool {
	prefix := projectPath
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(filePath, prefix)
}
