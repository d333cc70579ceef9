package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverrides(t *testing.T) {
	base := DefaultOptions()
	base.Autofix.FixOnSave = true

	got, err := ApplyOverrides(base, []byte(`{"nodeBin":"/custom/node","autofix":{"rulesToDisableWhileFixing":["semi"]},"bogus":1}`))
	require.NoError(t, err)

	assert.Equal(t, "/custom/node", got.NodeBin)
	assert.Equal(t, []string{"semi"}, got.Autofix.RulesToDisableWhileFixing)
	// a group is replaced whole, so fixOnSave falls back to its zero value
	assert.False(t, got.Autofix.FixOnSave)
	assert.Equal(t, base.Advanced, got.Advanced)
}

func TestApplyOverridesInvalid(t *testing.T) {
	base := DefaultOptions()
	got, err := ApplyOverrides(base, []byte(`{not json`))
	assert.Error(t, err)
	assert.Equal(t, base, got)

	got, err = ApplyOverrides(base, nil)
	assert.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestOverrideStore(t *testing.T) {
	dir := t.TempDir()
	store := NewOverrideStore()

	got, err := store.Resolve(DefaultOptions(), dir)
	require.NoError(t, err)
	assert.Equal(t, "node", got.NodeBin)

	file := filepath.Join(dir, OverridesFile)
	require.NoError(t, os.WriteFile(file, []byte(`{"nodeBin":"/x/node"}`), 0o644))

	// cached until rescanned
	got, err = store.Resolve(DefaultOptions(), dir)
	require.NoError(t, err)
	assert.Equal(t, "node", got.NodeBin)

	require.NoError(t, store.Rescan(dir))
	got, err = store.Resolve(DefaultOptions(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/x/node", got.NodeBin)

	require.NoError(t, os.WriteFile(file, []byte(`{broken`), 0o644))
	assert.Error(t, store.Rescan(dir))

	require.NoError(t, os.Remove(file))
	require.NoError(t, store.Rescan(dir))
	got, err = store.Resolve(DefaultOptions(), dir)
	require.NoError(t, err)
	assert.Equal(t, "node", got.NodeBin)
}
