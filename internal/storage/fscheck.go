package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNetworkFilesystem is returned by OpenSQLite when the journal would live
// on a network mount, where SQLite's file locking cannot be trusted.
var ErrNetworkFilesystem = errors.New("journal is on a network filesystem")

// fsTypeFunc reports the filesystem type name for an existing path.
type fsTypeFunc func(path string) (string, error)

var remoteFSTypes = []string{"9p", "afpfs", "afs", "ceph", "cifs", "nfs", "nfs4", "smbfs", "smb2", "webdav"}

func requireLocalFS(dbPath string) error {
	return requireLocalFSWith(dbPath, detectFilesystemType)
}

// requireLocalFSWith checks the filesystem holding dbPath. The database file
// and its directories may not exist yet, so the closest existing ancestor is
// inspected instead.
func requireLocalFSWith(dbPath string, fsType fsTypeFunc) error {
	if dbPath == "" {
		return errors.New("sqlite path is empty")
	}
	dir, err := existingAncestor(dbPath)
	if err != nil {
		return fmt.Errorf("journal path %q: %w", dbPath, err)
	}
	name, err := fsType(dir)
	if err != nil {
		return fmt.Errorf("journal path %q: %w", dbPath, err)
	}
	if isRemoteFS(name) {
		return fmt.Errorf("%w: %q is on %s; point journal.path at a local disk or set journal.enabled: false",
			ErrNetworkFilesystem, dbPath, name)
	}
	return nil
}

func existingAncestor(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		case filepath.Dir(dir) == dir:
			return "", fmt.Errorf("no existing ancestor of %q", abs)
		}
	}
}

func isRemoteFS(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, remote := range remoteFSTypes {
		if name == remote {
			return true
		}
	}
	return false
}
