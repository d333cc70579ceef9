package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode stands in for `node bin/eslint.js`. It reports a missing
// semicolon until the text on stdin contains one.
const fakeNode = `#!/bin/sh
if [ -n "$FAKE_CWD_OUT" ]; then pwd > "$FAKE_CWD_OUT"; fi
if [ -n "$FAKE_ARGS_OUT" ]; then echo "$@" > "$FAKE_ARGS_OUT"; fi
input=$(cat)
file="$6"
case "$input" in
  *"no config"*)
    echo "ESLint couldn't find a configuration file. To set up a configuration file for this project, please run:" >&2
    exit 2
    ;;
  *"crash"*)
    echo "TypeError: boom" >&2
    exit 2
    ;;
  *";"*)
    printf '{"results":[{"filePath":"%s","messages":[]}],"metadata":{"rulesMeta":{}}}\n' "$file"
    exit 0
    ;;
  *)
    printf '{"results":[{"filePath":"%s","messages":[{"ruleId":"semi","severity":2,"message":"Missing semicolon.","line":1,"column":4,"endLine":1,"endColumn":4,"fix":{"range":[3,3],"text":";"}}]}],"metadata":{"rulesMeta":{"semi":{"type":"layout","fixable":"code","docs":{"url":"https://eslint.org/docs/rules/semi"}}}}}\n' "$file"
    exit 1
    ;;
esac
`

func setupFakeEngine(t *testing.T, fix FixPredicate) (*CLIEngine, string) {
	t.Helper()
	dir := t.TempDir()
	nodeBin := filepath.Join(dir, "node")
	require.NoError(t, os.WriteFile(nodeBin, []byte(fakeNode), 0o755))

	cwd := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(cwd, 0o755))

	eng, err := CLIFactory{}.New(
		Installation{EntryPath: filepath.Join(dir, "eslint", "bin", "eslint.js"), RootPath: filepath.Join(dir, "eslint"), Version: "8.57.0"},
		Options{NodeBin: nodeBin, Cwd: cwd, Ignore: true, Fix: fix},
	)
	require.NoError(t, err)
	return eng.(*CLIEngine), cwd
}

func TestCLIEngine_LintText(t *testing.T) {
	eng, cwd := setupFakeEngine(t, nil)
	cwdOut := filepath.Join(t.TempDir(), "cwd")
	t.Setenv("FAKE_CWD_OUT", cwdOut)

	file := filepath.Join(cwd, "foo.js")
	results, err := eng.LintText(context.Background(), "foo", file)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, file, results[0].FilePath)
	require.Len(t, results[0].Messages, 1)
	assert.Equal(t, "semi", results[0].Messages[0].RuleID)
	assert.Nil(t, results[0].Output, "lint-only engine never fixes")

	meta := eng.RulesMeta(results)
	assert.Equal(t, "https://eslint.org/docs/rules/semi", meta["semi"].Docs.URL)

	// the engine ran in the configured directory, not ours
	got, err := os.ReadFile(cwdOut)
	require.NoError(t, err)
	wantCwd, _ := filepath.EvalSymlinks(cwd)
	gotCwd, _ := filepath.EvalSymlinks(strings.TrimSpace(string(got)))
	assert.Equal(t, wantCwd, gotCwd)
}

func TestCLIEngine_NoIgnoreFlag(t *testing.T) {
	eng, cwd := setupFakeEngine(t, nil)
	eng.opts.Ignore = false
	argsOut := filepath.Join(t.TempDir(), "args")
	t.Setenv("FAKE_ARGS_OUT", argsOut)

	_, err := eng.LintText(context.Background(), "foo;", filepath.Join(cwd, "a.js"))
	require.NoError(t, err)
	args, err := os.ReadFile(argsOut)
	require.NoError(t, err)
	assert.Contains(t, string(args), "--no-ignore")
	assert.Contains(t, string(args), "--format json-with-metadata")
}

func TestCLIEngine_FixLoop(t *testing.T) {
	eng, cwd := setupFakeEngine(t, func(Message) bool { return true })

	results, err := eng.LintText(context.Background(), "foo", filepath.Join(cwd, "foo.js"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Output)
	assert.Equal(t, "foo;", *results[0].Output)
	assert.Empty(t, results[0].Messages)
}

func TestCLIEngine_FixPredicateRejects(t *testing.T) {
	eng, cwd := setupFakeEngine(t, func(m Message) bool { return m.RuleID != "semi" })

	results, err := eng.LintText(context.Background(), "foo", filepath.Join(cwd, "foo.js"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Output)
	assert.Len(t, results[0].Messages, 1)
}

func TestCLIEngine_Failures(t *testing.T) {
	eng, cwd := setupFakeEngine(t, nil)

	_, err := eng.LintText(context.Background(), "no config", filepath.Join(cwd, "a.js"))
	assert.True(t, errors.Is(err, ErrNoConfig), "got %v", err)

	_, err = eng.LintText(context.Background(), "crash", filepath.Join(cwd, "a.js"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoConfig))
	assert.Contains(t, err.Error(), "TypeError: boom")
}

func TestCLIEngine_LintFilesAndOutputFixes(t *testing.T) {
	eng, cwd := setupFakeEngine(t, func(Message) bool { return true })

	file := filepath.Join(cwd, "foo.js")
	require.NoError(t, os.WriteFile(file, []byte("foo"), 0o644))

	results, err := eng.LintFiles(context.Background(), []string{file})
	require.NoError(t, err)
	require.NoError(t, eng.OutputFixes(results))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "foo;", string(data))

	// already fixed on disk: nothing rewritten
	info, err := os.Stat(file)
	require.NoError(t, err)
	require.NoError(t, eng.OutputFixes(results))
	info2, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())
}

func TestCLIFactory_Validation(t *testing.T) {
	_, err := CLIFactory{}.New(Installation{RootPath: "/x"}, Options{NodeBin: "node"})
	assert.Error(t, err)
	_, err = CLIFactory{}.New(Installation{EntryPath: "/x/bin/eslint.js"}, Options{})
	assert.Error(t, err)
}

func TestOutputFixes(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name    string
		initial string
		output  *string
		checkFn func(t *testing.T, path string, before os.FileInfo)
	}{
		{
			name:    "changed output is written with the file's mode",
			initial: "foo",
			output:  str("foo;"),
			checkFn: func(t *testing.T, path string, before os.FileInfo) {
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "foo;", string(data))
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			},
		},
		{
			name:    "identical output leaves the file alone",
			initial: "foo;",
			output:  str("foo;"),
			checkFn: func(t *testing.T, path string, before os.FileInfo) {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, before.ModTime(), info.ModTime())
			},
		},
		{
			name:    "no output is skipped",
			initial: "foo",
			checkFn: func(t *testing.T, path string, before os.FileInfo) {
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "foo", string(data))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "a.js")
			require.NoError(t, os.WriteFile(path, []byte(tt.initial), 0o600))
			before, err := os.Stat(path)
			require.NoError(t, err)

			require.NoError(t, OutputFixes([]Result{{FilePath: path, Output: tt.output}}))
			tt.checkFn(t, path, before)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		err := OutputFixes([]Result{{FilePath: filepath.Join(t.TempDir(), "gone.js"), Output: str("x")}})
		assert.Error(t, err)
	})
}
